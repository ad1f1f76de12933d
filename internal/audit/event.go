package audit

import (
	"time"

	"github.com/xela07ax/spaceai-cmdgate/internal/domain"
)

// MaxOutputBytes — сколько stdout/stderr сохраняем в аудит.
const MaxOutputBytes = 4096

type AuditEvent struct {
	ID          string    `json:"id"`       // UUID события
	TraceID     string    `json:"trace_id"` // Сквозной ID запроса
	Type        string    `json:"type"`     // pending, approved, denied, failed, executed, rejected
	Command     string    `json:"command"`
	Args        []string  `json:"args"`
	PendingID   string    `json:"pending_id,omitempty"`
	RequestedBy string    `json:"requested_by,omitempty"` // Кто просил
	Actor       string    `json:"actor,omitempty"`        // Кто решил (оператор)
	Reason      string    `json:"reason,omitempty"`
	Error       string    `json:"error,omitempty"`
	Stdout      string    `json:"stdout,omitempty"`
	Stderr      string    `json:"stderr,omitempty"`
	DurationMs  int64     `json:"duration_ms"`
	Timestamp   time.Time `json:"timestamp"`
}

// FromEvent сворачивает событие шлюза в плоскую запись для хранилища.
func FromEvent(ev domain.Event) AuditEvent {
	rec := AuditEvent{
		ID:        ev.ID,
		TraceID:   ev.TraceID,
		Type:      string(ev.Type),
		Command:   ev.Command,
		Args:      ev.Args,
		Actor:     ev.Actor,
		Reason:    ev.Reason,
		Error:     ev.Error,
		Timestamp: ev.Timestamp,
	}
	if rec.Args == nil {
		rec.Args = []string{}
	}
	if ev.Pending != nil {
		rec.PendingID = ev.Pending.ID
		rec.RequestedBy = ev.Pending.RequestedBy
	}
	if ev.Result != nil {
		rec.Stdout = truncate(ev.Result.Stdout)
		rec.Stderr = truncate(ev.Result.Stderr)
		rec.DurationMs = ev.Result.Duration.Milliseconds()
	}
	return rec
}

func truncate(s string) string {
	if len(s) <= MaxOutputBytes {
		return s
	}
	return s[:MaxOutputBytes] + "...[truncated]"
}

// Лимиты выборки журнала
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// Filter — условия выборки журнала. Пустые поля не фильтруют.
type Filter struct {
	Command   string
	Type      string
	PendingID string
	TraceID   string
	Limit     int
}

func (f Filter) EffectiveLimit() int {
	switch {
	case f.Limit <= 0:
		return DefaultLimit
	case f.Limit > MaxLimit:
		return MaxLimit
	default:
		return f.Limit
	}
}
