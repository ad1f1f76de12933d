package api

import (
	"fmt"
	"time"

	"github.com/xela07ax/spaceai-cmdgate/internal/domain"
)

// Статусы ответа на execute
const (
	StatusExecuted = "executed"
	StatusPending  = "pending"
)

// MaxTimeout — верхняя граница таймаута, который может запросить клиент.
const MaxTimeout = 10 * time.Minute

type ExecuteRequest struct {
	Command     string   `json:"command"`
	Args        []string `json:"args"`
	TimeoutMs   int64    `json:"timeoutMs,omitempty"`
	RequestedBy string   `json:"requestedBy,omitempty"`
	// Wait: держать соединение до решения оператора вместо 202 + id
	Wait bool `json:"wait,omitempty"`
}

func (r ExecuteRequest) Validate() error {
	if r.Command == "" {
		return fmt.Errorf("%w: command is required", ErrInvalid)
	}
	if r.TimeoutMs < 0 {
		return fmt.Errorf("%w: timeoutMs must be positive", ErrInvalid)
	}
	// Сравниваем до умножения: большие значения переполняют Duration
	if r.TimeoutMs > MaxTimeout.Milliseconds() {
		return fmt.Errorf("%w: timeoutMs exceeds %s", ErrInvalid, MaxTimeout)
	}
	return nil
}

func (r ExecuteRequest) Timeout() time.Duration {
	return time.Duration(r.TimeoutMs) * time.Millisecond
}

type ExecuteResponse struct {
	Status     string          `json:"status"`
	Stdout     string          `json:"stdout,omitempty"`
	Stderr     string          `json:"stderr,omitempty"`
	DurationMs int64           `json:"durationMs,omitempty"`
	PendingID  string          `json:"pendingId,omitempty"`
	Pending    *PendingCommand `json:"pending,omitempty"`
}

func Executed(res *domain.ExecutionResult) ExecuteResponse {
	return ExecuteResponse{
		Status:     StatusExecuted,
		Stdout:     res.Stdout,
		Stderr:     res.Stderr,
		DurationMs: res.Duration.Milliseconds(),
	}
}

func Pending(p domain.PendingCommand) ExecuteResponse {
	view := FromPending(p)
	return ExecuteResponse{
		Status:    StatusPending,
		PendingID: p.ID,
		Pending:   &view,
	}
}
