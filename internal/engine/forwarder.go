package engine

import (
	"context"
	"sync"
	"time"

	"github.com/xela07ax/spaceai-cmdgate/internal/domain"
	"go.uber.org/zap"
)

// Sink — внешний получатель событий (Redis, вебхук и т.п.).
type Sink interface {
	Name() string
	Publish(ctx context.Context, ev domain.Event) error
}

// Forwarder — подписчик, уносящий доставку в отдельную горутину.
// Notifier синхронный, а сеть медленная: HandleEvent только кладет в буфер.
type Forwarder struct {
	ch       chan domain.Event
	sink     Sink
	logger   *zap.Logger
	metrics  *Metrics
	timeout  time.Duration
	wg       sync.WaitGroup

	// mu защищает closed и отправку в ch: close не пересечется с send
	mu     sync.RWMutex
	closed bool
}

func NewForwarder(sink Sink, buffer int, logger *zap.Logger, metrics *Metrics) *Forwarder {
	if buffer <= 0 {
		buffer = 1024
	}
	return &Forwarder{
		ch:      make(chan domain.Event, buffer),
		sink:    sink,
		logger:  logger.With(zap.String("mod", "forwarder"), zap.String("sink", sink.Name())),
		metrics: metrics,
		timeout: 5 * time.Second,
	}
}

func (f *Forwarder) Start() {
	f.wg.Add(1)
	go f.worker()
}

// Stop закрывает вход и дожидается отправки того, что уже в буфере.
func (f *Forwarder) Stop() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	close(f.ch)
	f.mu.Unlock()

	f.wg.Wait()
	f.logger.Info("forwarder stopped gracefully")
}

func (f *Forwarder) HandleEvent(_ context.Context, ev domain.Event) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		f.logger.Warn("event dropped: forwarder is stopping", zap.String("id", ev.ID))
		return
	}

	// Load Shedding: публикующий никогда не ждет сеть
	select {
	case f.ch <- ev:
	default:
		if f.metrics != nil {
			f.metrics.EventsDropped.WithLabelValues(f.sink.Name()).Inc()
		}
		f.logger.Error("forwarder_buffer_overflow",
			zap.String("event_id", ev.ID),
			zap.String("trace_id", ev.TraceID))
	}
}

func (f *Forwarder) worker() {
	defer f.wg.Done()

	for ev := range f.ch {
		// Background: запрос, породивший событие, к этому моменту уже мог завершиться
		ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
		if err := f.sink.Publish(ctx, ev); err != nil {
			f.logger.Error("event delivery failed",
				zap.String("event_id", ev.ID),
				zap.String("type", string(ev.Type)),
				zap.Error(err))
		}
		cancel()
	}
}
