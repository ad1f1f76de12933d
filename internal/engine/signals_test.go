package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/spaceai-cmdgate/internal/domain"
	"github.com/xela07ax/spaceai-cmdgate/internal/policy"
)

func TestParseSignal(t *testing.T) {
	tests := []struct {
		payload string
		command string
		value   string
		wantErr bool
	}{
		{payload: "curl:forbidden", command: "curl", value: "forbidden"},
		{payload: " git : requires_approval ", command: "git", value: "requires_approval"},
		{payload: "/usr/bin/ls:safe", command: "/usr/bin/ls", value: "safe"},
		{payload: "a:b:remove", command: "a:b", value: "remove"},
		{payload: "curl", wantErr: true},
		{payload: ":safe", wantErr: true},
		{payload: "curl:", wantErr: true},
		{payload: " :safe", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			command, value, err := ParseSignal(tt.payload)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.command, command)
			assert.Equal(t, tt.value, value)
		})
	}
}

func TestPolicySignalListener_Apply(t *testing.T) {
	registry := policy.NewRegistry(zap.NewNop(),
		domain.WhitelistEntry{Command: "curl", Level: domain.LevelSafe},
		domain.WhitelistEntry{Command: "wget", Level: domain.LevelSafe},
	)
	l := NewPolicySignalListener(nil, registry, "test", zap.NewNop())

	require.NoError(t, l.Apply("curl:forbidden"))
	e, ok := registry.Get("curl")
	require.True(t, ok)
	assert.Equal(t, domain.LevelForbidden, e.Level)

	require.NoError(t, l.Apply("wget:remove"))
	_, ok = registry.Get("wget")
	assert.False(t, ok)

	require.NoError(t, l.Apply("nc:safe"), "unknown command is ignored")
	_, ok = registry.Get("nc")
	assert.False(t, ok, "signals never create entries")

	assert.Error(t, l.Apply("curl:root"))
	assert.Error(t, l.Apply("garbage"))
}
