package domain

import "time"

// EventType — тип события жизненного цикла запроса
type EventType string

const (
	EventPending  EventType = "pending"  // Запрос ушел в очередь на апрув
	EventApproved EventType = "approved" // Оператор одобрил, команда выполнена
	EventDenied   EventType = "denied"   // Оператор отклонил
	EventFailed   EventType = "failed"   // Выполнение упало (любой путь)
	EventExecuted EventType = "executed" // Safe-команда выполнена сразу
	EventRejected EventType = "rejected" // Unauthorized или Forbidden
)

// Event — то, что видят подписчики (UI, аудит, метрики).
// Reason: у denied причина оператора, у pending причина понижения уровня,
// у rejected/failed вид ошибки.
type Event struct {
	ID        string           `json:"id"`
	Type      EventType        `json:"type"`
	TraceID   string           `json:"trace_id,omitempty"`
	Command   string           `json:"command"`
	Args      []string         `json:"args"`
	Pending   *PendingCommand  `json:"pending,omitempty"`
	Result    *ExecutionResult `json:"result,omitempty"`
	Error     string           `json:"error,omitempty"`
	Reason    string           `json:"reason,omitempty"`
	Actor     string           `json:"actor,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}
