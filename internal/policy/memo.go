package policy

import (
	"sync"

	"github.com/xela07ax/spaceai-cmdgate/internal/domain"
	"go.uber.org/zap"
)

// Registry — In-memory белый список команд. Единственный источник правды для валидатора.
// Персистентности нет: состояние живет, пока жив процесс.
type Registry struct {
	mu sync.RWMutex
	// Кэш: имя команды -> правило
	entries map[string]domain.WhitelistEntry

	logger *zap.Logger
}

func NewRegistry(logger *zap.Logger, seed ...domain.WhitelistEntry) *Registry {
	r := &Registry{
		entries: make(map[string]domain.WhitelistEntry, len(seed)),
		logger:  logger.Named("registry"),
	}
	for _, e := range seed {
		r.entries[e.Command] = e.Clone()
	}
	return r
}

// Add кладет правило, перетирая существующее с тем же именем.
func (r *Registry) Add(entry domain.WhitelistEntry) {
	e := entry.Clone()

	r.mu.Lock()
	r.entries[e.Command] = e
	r.mu.Unlock()

	r.logger.Info("whitelist entry set",
		zap.String("command", e.Command),
		zap.String("level", string(e.Level)),
		zap.Int("matchers", len(e.AllowedArgs)))
}

// Remove удаляет правило. Отсутствие имени — не ошибка.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	_, ok := r.entries[name]
	delete(r.entries, name)
	r.mu.Unlock()

	if !ok {
		r.logger.Debug("remove of unknown command ignored", zap.String("command", name))
	}
	return ok
}

// UpdateLevel меняет только уровень. Матчеры и описание не трогаем.
func (r *Registry) UpdateLevel(name string, level domain.SecurityLevel) bool {
	r.mu.Lock()
	e, ok := r.entries[name]
	if ok {
		e.Level = level
		r.entries[name] = e
	}
	r.mu.Unlock()

	if !ok {
		r.logger.Debug("level update of unknown command ignored", zap.String("command", name))
		return false
	}
	r.logger.Info("whitelist level updated", zap.String("command", name), zap.String("level", string(level)))
	return true
}

// Get отдает копию правила — это и есть наш "Hot Path".
func (r *Registry) Get(name string) (domain.WhitelistEntry, bool) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return domain.WhitelistEntry{}, false
	}
	return e.Clone(), true
}

// List — снапшот. Порядок не гарантируется.
func (r *Registry) List() []domain.WhitelistEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.WhitelistEntry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Clone())
	}
	return out
}

// Replace атомарно подменяет весь набор (загрузка сидов при старте).
func (r *Registry) Replace(entries []domain.WhitelistEntry) {
	next := make(map[string]domain.WhitelistEntry, len(entries))
	for _, e := range entries {
		next[e.Command] = e.Clone()
	}

	r.mu.Lock()
	r.entries = next
	r.mu.Unlock()

	r.logger.Info("whitelist replaced", zap.Int("count", len(next)))
}
