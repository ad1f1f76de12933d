package domain

import (
	"time"
)

// PendingCommand — запрос, ожидающий решения оператора.
// Живет только в очереди, пока по нему не принято решение.
type PendingCommand struct {
	ID          string        `json:"id"`
	Command     string        `json:"command"`
	Args        []string      `json:"args"`
	RequestedAt time.Time     `json:"requestedAt"`
	RequestedBy string        `json:"requestedBy,omitempty"`
	Timeout     time.Duration `json:"-"`
	TraceID     string        `json:"traceId,omitempty"`
	Reason      string        `json:"reason,omitempty"` // Почему потребовался апрув
}

// Clone копирует аргументы, чтобы снапшоты не делили память с очередью.
func (p PendingCommand) Clone() PendingCommand {
	if p.Args != nil {
		args := make([]string, len(p.Args))
		copy(args, p.Args)
		p.Args = args
	}
	return p
}

// ExecutionResult — то, что вернул процесс. Не сохраняется.
type ExecutionResult struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	Duration time.Duration `json:"-"`
}
