package engine

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/spaceai-cmdgate/internal/domain"
)

func requireUnix(t *testing.T, bins ...string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("unix binaries required")
	}
	for _, b := range bins {
		if _, err := exec.LookPath(b); err != nil {
			t.Skipf("%s not found in PATH", b)
		}
	}
}

func TestProcessExecutor_CapturesOutput(t *testing.T) {
	requireUnix(t, "echo")
	e := NewProcessExecutor(5*time.Second, zap.NewNop())

	res, err := e.Run(context.Background(), "echo", []string{"hello", "world"}, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello world\n", res.Stdout)
	assert.Empty(t, res.Stderr)
	assert.Positive(t, res.Duration)
}

func TestProcessExecutor_NoShellInterpretation(t *testing.T) {
	requireUnix(t, "echo")
	e := NewProcessExecutor(5*time.Second, zap.NewNop())

	marker := filepath.Join(t.TempDir(), "pwned")
	args := []string{"a;", "touch", marker, "|", "$(whoami)", "`id`", "&&", "*"}

	res, err := e.Run(context.Background(), "echo", args, 0)
	require.NoError(t, err)
	assert.Equal(t, "a; touch "+marker+" | $(whoami) `id` && *\n", res.Stdout)
	assert.NoFileExists(t, marker)
}

func TestProcessExecutor_StderrOnSuccessIsNotFailure(t *testing.T) {
	requireUnix(t, "sh")
	e := NewProcessExecutor(5*time.Second, zap.NewNop())

	res, err := e.Run(context.Background(), "sh", []string{"-c", "echo warn >&2"}, 0)
	require.NoError(t, err)
	assert.Equal(t, "warn\n", res.Stderr)
}

func TestProcessExecutor_NonZeroExit(t *testing.T) {
	requireUnix(t, "sh")
	e := NewProcessExecutor(5*time.Second, zap.NewNop())

	_, err := e.Run(context.Background(), "sh", []string{"-c", "echo broken >&2; exit 3"}, 0)
	var execErr *domain.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, 3, execErr.ExitCode)
	assert.Equal(t, "broken\n", execErr.Stderr)
	assert.Contains(t, err.Error(), "broken")
}

func TestProcessExecutor_NotFound(t *testing.T) {
	requireUnix(t)
	e := NewProcessExecutor(5*time.Second, zap.NewNop())

	_, err := e.Run(context.Background(), "definitely-not-a-real-binary-42", nil, 0)
	var execErr *domain.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, -1, execErr.ExitCode)
}

func TestProcessExecutor_Timeout(t *testing.T) {
	requireUnix(t, "sleep")
	e := NewProcessExecutor(5*time.Second, zap.NewNop())

	start := time.Now()
	_, err := e.Run(context.Background(), "sleep", []string{"5"}, 100*time.Millisecond)
	var timeoutErr *domain.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 100*time.Millisecond, timeoutErr.Timeout)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestProcessExecutor_CallerDeadlineIsNotRunTimeout(t *testing.T) {
	requireUnix(t, "sleep")
	e := NewProcessExecutor(5*time.Second, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := e.Run(ctx, "sleep", []string{"5"}, time.Minute)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	var timeoutErr *domain.TimeoutError
	assert.False(t, errors.As(err, &timeoutErr), "run timeout of 1m was not reached")
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestProcessExecutor_CallerCancel(t *testing.T) {
	requireUnix(t, "sleep")
	e := NewProcessExecutor(5*time.Second, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err := e.Run(ctx, "sleep", []string{"5"}, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcessExecutor_DefaultTimeout(t *testing.T) {
	requireUnix(t, "sleep")
	e := NewProcessExecutor(100*time.Millisecond, zap.NewNop())

	_, err := e.Run(context.Background(), "sleep", []string{"5"}, 0)
	var timeoutErr *domain.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 100*time.Millisecond, timeoutErr.Timeout)
}
