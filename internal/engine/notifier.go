package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/xela07ax/spaceai-cmdgate/internal/domain"
	"go.uber.org/zap"
)

// Subscriber получает события синхронно, в горутине публикующего.
// Долгую работу подписчик обязан уносить к себе (см. Forwarder).
type Subscriber interface {
	HandleEvent(ctx context.Context, ev domain.Event)
}

type SubscriberFunc func(ctx context.Context, ev domain.Event)

func (f SubscriberFunc) HandleEvent(ctx context.Context, ev domain.Event) { f(ctx, ev) }

// Notifier — синхронный fan-out. Паника одного подписчика не мешает остальным
// и не возвращается в публикующего.
type Notifier struct {
	mu      sync.RWMutex
	subs    []Subscriber
	logger  *zap.Logger
	metrics *Metrics
}

func NewNotifier(logger *zap.Logger, metrics *Metrics) *Notifier {
	return &Notifier{
		logger:  logger.Named("notifier"),
		metrics: metrics,
	}
}

func (n *Notifier) Subscribe(s Subscriber) {
	n.mu.Lock()
	n.subs = append(n.subs, s)
	n.mu.Unlock()
}

func (n *Notifier) Publish(ctx context.Context, ev domain.Event) {
	n.mu.RLock()
	subs := make([]Subscriber, len(n.subs))
	copy(subs, n.subs)
	n.mu.RUnlock()

	for i, s := range subs {
		n.deliver(ctx, i, s, ev)
	}
}

func (n *Notifier) deliver(ctx context.Context, idx int, s Subscriber, ev domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("subscriber failed",
				zap.Int("subscriber", idx),
				zap.String("event", string(ev.Type)),
				zap.String("event_id", ev.ID),
				zap.String("panic", fmt.Sprint(r)))
			if n.metrics != nil {
				n.metrics.SubscriberFailures.WithLabelValues(string(ev.Type)).Inc()
			}
		}
	}()

	// Каждому подписчику своя копия: аргументы и pending не должны шариться
	s.HandleEvent(ctx, cloneEvent(ev))
}

func cloneEvent(ev domain.Event) domain.Event {
	if ev.Args != nil {
		ev.Args = append([]string(nil), ev.Args...)
	}
	if ev.Pending != nil {
		p := ev.Pending.Clone()
		ev.Pending = &p
	}
	if ev.Result != nil {
		r := *ev.Result
		ev.Result = &r
	}
	return ev
}

// LogSubscriber пишет каждое событие в структурный лог.
func LogSubscriber(logger *zap.Logger) Subscriber {
	l := logger.Named("events")
	return SubscriberFunc(func(_ context.Context, ev domain.Event) {
		fields := []zap.Field{
			zap.String("event_id", ev.ID),
			zap.String("type", string(ev.Type)),
			zap.String("trace_id", ev.TraceID),
			zap.String("command", ev.Command),
			zap.Strings("args", ev.Args),
		}
		if ev.Pending != nil {
			fields = append(fields, zap.String("pending_id", ev.Pending.ID))
		}
		if ev.Actor != "" {
			fields = append(fields, zap.String("actor", ev.Actor))
		}
		if ev.Reason != "" {
			fields = append(fields, zap.String("reason", ev.Reason))
		}

		switch ev.Type {
		case domain.EventFailed:
			l.Error("command failed", append(fields, zap.String("error", ev.Error))...)
		case domain.EventRejected:
			l.Warn("command rejected", append(fields, zap.String("error", ev.Error))...)
		default:
			l.Info("command event", fields...)
		}
	})
}

// MetricsSubscriber считает отказы по типам.
func MetricsSubscriber(m *Metrics) Subscriber {
	return SubscriberFunc(func(_ context.Context, ev domain.Event) {
		switch ev.Type {
		case domain.EventDenied:
			m.ErrorTotal.WithLabelValues("denied").Inc()
		case domain.EventRejected, domain.EventFailed:
			m.ErrorTotal.WithLabelValues(ev.Reason).Inc()
		}
	})
}
