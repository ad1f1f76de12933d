package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMatchers(t *testing.T) {
	m, err := parseMatchers([]string{"status", "re:^--short$"})
	require.NoError(t, err)
	require.Len(t, m, 2)

	assert.False(t, m[0].IsPattern())
	assert.Equal(t, "status", m[0].Exact)
	assert.True(t, m[1].IsPattern())
	assert.True(t, m[1].Match("--short"))
	assert.False(t, m[1].Match("--long"))

	m, err = parseMatchers(nil)
	require.NoError(t, err)
	assert.Nil(t, m)

	_, err = parseMatchers([]string{"re:("})
	assert.Error(t, err)
}
