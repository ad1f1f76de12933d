package api

import (
	"context"
	"errors"

	"github.com/xela07ax/spaceai-cmdgate/internal/domain"
)

// ErrInvalid — ошибка формы запроса (400 / InvalidArgument).
var ErrInvalid = errors.New("invalid request")

// Виды ошибок, которые видит клиент в поле kind.
const (
	KindInvalid      = "invalid"
	KindUnauthorized = "unauthorized"
	KindForbidden    = "forbidden"
	KindNotFound     = "not_found"
	KindDenied       = "denied"
	KindExecution    = "execution"
	KindTimeout      = "timeout"
	KindCanceled     = "canceled"
	KindInternal     = "internal"
)

type ErrorResponse struct {
	Error    string `json:"error"`
	Kind     string `json:"kind"`
	Reason   string `json:"reason,omitempty"`   // Причина отказа оператора
	ExitCode *int   `json:"exitCode,omitempty"` // Для kind=execution
	Stderr   string `json:"stderr,omitempty"`
}

func ErrorKind(err error) string {
	var (
		execErr    *domain.ExecutionError
		timeoutErr *domain.TimeoutError
		deniedErr  *domain.DeniedError
	)
	switch {
	case errors.Is(err, ErrInvalid):
		return KindInvalid
	case errors.Is(err, domain.ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return KindForbidden
	case errors.Is(err, domain.ErrNotFound):
		return KindNotFound
	case errors.As(err, &deniedErr):
		return KindDenied
	case errors.As(err, &timeoutErr):
		return KindTimeout
	case errors.As(err, &execErr):
		return KindExecution
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindInternal
	}
}

func NewErrorResponse(err error) ErrorResponse {
	resp := ErrorResponse{Error: err.Error(), Kind: ErrorKind(err)}

	var deniedErr *domain.DeniedError
	if errors.As(err, &deniedErr) {
		resp.Reason = deniedErr.Reason
	}
	var execErr *domain.ExecutionError
	if errors.As(err, &execErr) {
		code := execErr.ExitCode
		resp.ExitCode = &code
		resp.Stderr = execErr.Stderr
	}
	return resp
}

// AsError восстанавливает типизированную ошибку из ответа (для клиентов).
func (e ErrorResponse) AsError() error {
	switch e.Kind {
	case KindUnauthorized:
		return domain.ErrUnauthorized
	case KindForbidden:
		return domain.ErrForbidden
	case KindNotFound:
		return domain.ErrNotFound
	case KindDenied:
		return &domain.DeniedError{Reason: e.Reason}
	case KindInvalid:
		return errors.Join(ErrInvalid, errors.New(e.Error))
	default:
		return errors.New(e.Error)
	}
}
