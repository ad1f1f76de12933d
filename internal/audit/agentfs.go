package audit

/*
Файл agentfs.go реализует журнал аудита команд.

- Non-blocking Logging: события из шлюза попадают в буферизованный канал,
  задержки записи в БД не влияют на время ответа.
- Batching: пакетная запись по таймеру или при достижении лимита пачки.
- Drain Pattern: Stop закрывает канал, воркер вычитывает остаток и делает
  финальный flush.
*/

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/xela07ax/spaceai-cmdgate/internal/domain"
)

// StorageInterface определяет, куда физически будут сохраняться логи
type StorageInterface interface {
	// WriteBatch сохраняет пачку событий за один раз
	WriteBatch(ctx context.Context, events []AuditEvent) error
}

type Options struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
	// BufferGauge — опционально, заполненность буфера
	BufferGauge prometheus.Gauge
}

func (o Options) withDefaults() Options {
	if o.BufferSize <= 0 {
		o.BufferSize = 10000
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = 500 * time.Millisecond
	}
	return o
}

type AgentFS struct {
	ch     chan AuditEvent  // Буфер для асинхронности
	repo   StorageInterface // Postgres
	logger *zap.Logger
	opts   Options
	wg     sync.WaitGroup
	// Log после Stop не должен паниковать на закрытом канале:
	// отправка идет под RLock, close под Lock
	mu     sync.RWMutex
	closed bool
}

func NewAgentFS(repo StorageInterface, logger *zap.Logger, opts Options) *AgentFS {
	opts = opts.withDefaults()
	return &AgentFS{
		ch:     make(chan AuditEvent, opts.BufferSize),
		repo:   repo,
		logger: logger.With(zap.String("mod", "agentfs")),
		opts:   opts,
	}
}

func (fs *AgentFS) Start() {
	fs.wg.Add(1)
	go fs.worker()
}

// Stop «запирает» вход в канал и ждет, пока воркер всё допишет.
func (fs *AgentFS) Stop() {
	fs.mu.Lock()
	if fs.closed {
		fs.mu.Unlock()
		return
	}
	fs.closed = true
	fs.logger.Info("stopping auditor: closing channel and flushing buffer...")
	close(fs.ch)
	fs.mu.Unlock()

	fs.wg.Wait()
	fs.logger.Info("auditor stopped gracefully")
}

// HandleEvent делает AgentFS подписчиком шлюза.
func (fs *AgentFS) HandleEvent(_ context.Context, ev domain.Event) {
	fs.Log(FromEvent(ev))
}

func (fs *AgentFS) Log(event AuditEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if fs.closed {
		fs.logger.Warn("audit event dropped: auditor is stopping", zap.String("id", event.ID))
		return
	}

	// Load Shedding (сброс нагрузки)
	select {
	case fs.ch <- event:
		fs.reportFill()
	default:
		// Буфер переполнен: хотя бы оставим след в логе
		fs.logger.Error("audit_buffer_overflow",
			zap.String("command", event.Command),
			zap.String("type", event.Type),
			zap.String("trace_id", event.TraceID),
		)
	}
}

func (fs *AgentFS) reportFill() {
	if fs.opts.BufferGauge != nil {
		fs.opts.BufferGauge.Set(float64(len(fs.ch)))
	}
}

func (fs *AgentFS) worker() {
	defer fs.wg.Done()

	batch := make([]AuditEvent, 0, fs.opts.BatchSize)
	ticker := time.NewTicker(fs.opts.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Background: основной контекст может быть уже закрыт
		if err := fs.repo.WriteBatch(context.Background(), batch); err != nil {
			fs.logger.Error("audit flush failed", zap.Int("events", len(batch)), zap.Error(err))
		}
		// Новый слайс: хранилище могло сохранить ссылку на старый
		batch = make([]AuditEvent, 0, fs.opts.BatchSize)
		fs.reportFill()
	}

	for {
		select {
		case event, ok := <-fs.ch:
			if !ok {
				// Канал закрыт в Stop(): остаток уже вычитан, делаем финальный сброс
				flush()
				fs.logger.Info("audit worker finished")
				return
			}
			batch = append(batch, event)
			if len(batch) >= fs.opts.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
