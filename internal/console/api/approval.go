package api

import (
	"time"

	"github.com/xela07ax/spaceai-cmdgate/internal/domain"
)

// PendingCommand — запрос в очереди так, как его видит оператор.
type PendingCommand struct {
	ID          string    `json:"id"`
	Command     string    `json:"command"`
	Args        []string  `json:"args"`
	RequestedAt time.Time `json:"requestedAt"`
	RequestedBy string    `json:"requestedBy,omitempty"`
	TimeoutMs   int64     `json:"timeoutMs,omitempty"`
	TraceID     string    `json:"traceId,omitempty"`
	Reason      string    `json:"reason,omitempty"` // Почему запрос ушел на апрув
}

func FromPending(p domain.PendingCommand) PendingCommand {
	args := p.Args
	if args == nil {
		args = []string{}
	}
	return PendingCommand{
		ID:          p.ID,
		Command:     p.Command,
		Args:        args,
		RequestedAt: p.RequestedAt,
		RequestedBy: p.RequestedBy,
		TimeoutMs:   p.Timeout.Milliseconds(),
		TraceID:     p.TraceID,
		Reason:      p.Reason,
	}
}

func FromPendingList(list []domain.PendingCommand) []PendingCommand {
	out := make([]PendingCommand, 0, len(list))
	for _, p := range list {
		out = append(out, FromPending(p))
	}
	return out
}

// DenyRequest — тело POST /v1/pending/{id}/deny. Пустая причина допустима.
type DenyRequest struct {
	Reason string `json:"reason,omitempty"`
}

// DenyResponse подтверждает отказ и показывает итоговую причину.
type DenyResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"` // Всегда "denied"
}
