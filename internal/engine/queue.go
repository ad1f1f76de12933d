package engine

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/spaceai-cmdgate/internal/domain"
)

// outcome — то, чем будет разбужен ожидающий вызывающий.
type outcome struct {
	result *domain.ExecutionResult
	err    error
}

type pendingEntry struct {
	cmd   domain.PendingCommand
	reply chan outcome // Буфер 1: resolve никогда не блокируется
}

// resolve вызывается ровно один раз: запись уже изъята из очереди в take().
func (p *pendingEntry) resolve(res *domain.ExecutionResult, err error) {
	p.reply <- outcome{result: res, err: err}
}

// ApprovalQueue хранит запросы, ждущие решения оператора (HITL).
// Наличие id в мапе == по нему еще не было решения.
type ApprovalQueue struct {
	mu      sync.Mutex
	pending map[string]*pendingEntry
	now     func() time.Time
}

func NewApprovalQueue() *ApprovalQueue {
	return &ApprovalQueue{
		pending: make(map[string]*pendingEntry),
		now:     time.Now,
	}
}

// Enqueue регистрирует запрос и возвращает канал продолжения.
func (q *ApprovalQueue) Enqueue(cmd domain.PendingCommand) (domain.PendingCommand, <-chan outcome) {
	cmd = cmd.Clone()
	if cmd.RequestedAt.IsZero() {
		cmd.RequestedAt = q.now()
	}

	entry := &pendingEntry{reply: make(chan outcome, 1)}

	q.mu.Lock()
	cmd.ID = uuid.NewString()
	for _, exists := q.pending[cmd.ID]; exists; _, exists = q.pending[cmd.ID] {
		cmd.ID = uuid.NewString()
	}
	entry.cmd = cmd
	q.pending[cmd.ID] = entry
	q.mu.Unlock()

	return cmd.Clone(), entry.reply
}

// take изымает запись. Это единственная точка, делающая переход необратимым:
// второй вызов с тем же id получит ErrNotFound.
func (q *ApprovalQueue) take(id string) (*pendingEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry, ok := q.pending[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	delete(q.pending, id)
	return entry, nil
}

// Get отдает копию ожидающего запроса.
func (q *ApprovalQueue) Get(id string) (domain.PendingCommand, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry, ok := q.pending[id]
	if !ok {
		return domain.PendingCommand{}, false
	}
	return entry.cmd.Clone(), true
}

// List — снапшот очереди, старые запросы первыми.
func (q *ApprovalQueue) List() []domain.PendingCommand {
	q.mu.Lock()
	out := make([]domain.PendingCommand, 0, len(q.pending))
	for _, entry := range q.pending {
		out = append(out, entry.cmd.Clone())
	}
	q.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].RequestedAt.Equal(out[j].RequestedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].RequestedAt.Before(out[j].RequestedAt)
	})
	return out
}

func (q *ApprovalQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
