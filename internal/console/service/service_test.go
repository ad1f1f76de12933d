package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/xela07ax/spaceai-cmdgate/internal/audit"
	"github.com/xela07ax/spaceai-cmdgate/internal/domain"
	"github.com/xela07ax/spaceai-cmdgate/internal/engine"
	"github.com/xela07ax/spaceai-cmdgate/internal/policy"
)

type nopExecutor struct{}

func (nopExecutor) Run(context.Context, string, []string, time.Duration) (*domain.ExecutionResult, error) {
	return &domain.ExecutionResult{}, nil
}

func newGateway(t *testing.T) *engine.Gateway {
	t.Helper()
	logger := zap.NewNop()
	registry := policy.NewRegistry(logger,
		domain.WhitelistEntry{Command: "ls", Level: domain.LevelSafe},
		domain.WhitelistEntry{Command: "mv", Level: domain.LevelRequiresApproval},
		domain.WhitelistEntry{Command: "rm", Level: domain.LevelForbidden},
	)
	return engine.NewGateway(registry, nopExecutor{}, nil, nil, logger, engine.GatewayConfig{DefaultTimeout: time.Second})
}

type fakeActivity struct {
	window time.Duration
	err    error
}

func (f *fakeActivity) ActivityStats(_ context.Context, window time.Duration, top int) (*domain.ActivityStats, error) {
	f.window = window
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ActivityStats{TotalRequests: 42, TopCommands: make([]domain.CommandCount, 0, top)}, nil
}

func TestStatsService(t *testing.T) {
	gw := newGateway(t)
	_, err := gw.Submit(context.Background(), engine.ExecuteRequest{Command: "mv", Args: []string{"a", "b"}})
	require.NoError(t, err)

	stats, err := NewStatsService(gw, nil).GetGlobalStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.LiveStats{PendingCommands: 1, WhitelistEntries: 3, ForbiddenEntries: 1}, stats.Live)
	assert.Nil(t, stats.Activity)

	repo := &fakeActivity{}
	stats, err = NewStatsService(gw, repo).GetGlobalStats(context.Background())
	require.NoError(t, err)
	require.NotNil(t, stats.Activity)
	assert.Equal(t, int64(42), stats.Activity.TotalRequests)
	assert.Equal(t, time.Hour, repo.window)

	_, err = NewStatsService(gw, &fakeActivity{err: errors.New("db down")}).GetGlobalStats(context.Background())
	assert.ErrorContains(t, err, "db down")
}

type fakeLogs struct{ got audit.Filter }

func (f *fakeLogs) FetchLogs(_ context.Context, flt audit.Filter) ([]audit.AuditEvent, error) {
	f.got = flt
	return nil, nil
}

func TestAuditService_ClampsLimit(t *testing.T) {
	repo := &fakeLogs{}
	svc := NewAuditService(repo)

	_, err := svc.FetchLogs(context.Background(), audit.Filter{Limit: 1_000_000})
	require.NoError(t, err)
	assert.Equal(t, audit.MaxLimit, repo.got.Limit)

	_, err = svc.FetchLogs(context.Background(), audit.Filter{})
	require.NoError(t, err)
	assert.Equal(t, audit.DefaultLimit, repo.got.Limit)
}

func TestAuthService_GenerateToken(t *testing.T) {
	hash, err := HashPassword("pw", bcrypt.MinCost)
	require.NoError(t, err)

	svc := NewAuthService([]domain.Operator{{Username: "alice", PasswordHash: hash}}, nil)

	_, err = svc.GenerateToken(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.GenerateToken(context.Background(), "bob", "pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = HashPassword("pw", 99)
	assert.Error(t, err)
}

func TestWhitelistService_LocalOnly(t *testing.T) {
	gw := newGateway(t)
	svc := NewWhitelistService(gw, nil, zap.NewNop())
	ctx := context.Background()

	svc.Add(ctx, domain.WhitelistEntry{Command: "git", Level: domain.LevelSafe})
	svc.UpdateLevel(ctx, "ls", domain.LevelForbidden)
	svc.Remove(ctx, "mv")

	levels := map[string]domain.SecurityLevel{}
	for _, e := range svc.List() {
		levels[e.Command] = e.Level
	}
	assert.Equal(t, map[string]domain.SecurityLevel{
		"git": domain.LevelSafe,
		"ls":  domain.LevelForbidden,
		"rm":  domain.LevelForbidden,
	}, levels)
}
