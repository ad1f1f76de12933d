package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/xela07ax/spaceai-cmdgate/internal/domain"
	"go.uber.org/zap"
)

// Executor запускает внешний процесс. Разделяемого состояния нет,
// поэтому вызовы могут идти параллельно.
type Executor interface {
	Run(ctx context.Context, command string, args []string, timeout time.Duration) (*domain.ExecutionResult, error)
}

// errRunTimeout — причина отмены, когда сработал собственный таймаут запуска.
var errRunTimeout = errors.New("execution timeout")

// pipeWaitDelay — сколько ждем закрытия пайпов после kill (внуки могут их держать).
const pipeWaitDelay = 2 * time.Second

type ProcessExecutor struct {
	defaultTimeout time.Duration
	logger         *zap.Logger
}

func NewProcessExecutor(defaultTimeout time.Duration, logger *zap.Logger) *ProcessExecutor {
	return &ProcessExecutor{
		defaultTimeout: defaultTimeout,
		logger:         logger.Named("executor"),
	}
}

// Run передает command и args в ОС как готовый argv, без shell.
// Метасимволы в аргументах доходят до процесса как обычные данные.
func (e *ProcessExecutor) Run(ctx context.Context, command string, args []string, timeout time.Duration) (*domain.ExecutionResult, error) {
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}

	runCtx, cancel := context.WithTimeoutCause(ctx, timeout, errRunTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, command, args...)
	cmd.WaitDelay = pipeWaitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	if err == nil {
		return &domain.ExecutionResult{
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			Duration: duration,
		}, nil
	}

	if errors.Is(context.Cause(runCtx), errRunTimeout) {
		e.logger.Warn("process killed by timeout",
			zap.String("command", command),
			zap.Duration("timeout", timeout))
		return nil, &domain.TimeoutError{Command: command, Timeout: timeout}
	}
	// Процесс убит отменой или дедлайном вызывающего, а не нашим таймаутом
	if ctx.Err() != nil {
		e.logger.Warn("process interrupted by caller",
			zap.String("command", command),
			zap.Error(ctx.Err()))
		return nil, fmt.Errorf("execution of %s interrupted: %w", command, ctx.Err())
	}

	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}

	return nil, &domain.ExecutionError{
		Command:  command,
		ExitCode: exitCode,
		Stderr:   stderr.String(),
		Err:      err,
	}
}
