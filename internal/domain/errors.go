package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrUnauthorized — команды нет в белом списке
	ErrUnauthorized = errors.New("command not whitelisted")
	// ErrForbidden — команда явно запрещена
	ErrForbidden = errors.New("command forbidden")
	// ErrNotFound — неизвестный или уже разрешенный pending id
	ErrNotFound = errors.New("pending command not found")
)

// DefaultDenyReason отдается вызывающему, если оператор не указал причину.
const DefaultDenyReason = "Command denied by user"

// ExecutionError — ненулевой код выхода или ошибка запуска процесса.
type ExecutionError struct {
	Command  string
	ExitCode int // -1, если процесс не стартовал
	Stderr   string
	Err      error
}

func (e *ExecutionError) Error() string {
	msg := fmt.Sprintf("execution failed: %s: %v", e.Command, e.Err)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// TimeoutError — процесс не завершился за отведенное время и был убит.
type TimeoutError struct {
	Command string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("execution timed out after %s: %s", e.Timeout, e.Command)
}

// DeniedError доставляется ожидающему вызывающему при отказе оператора.
type DeniedError struct {
	ID     string
	Reason string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("command %s denied: %s", e.ID, e.Reason)
}
