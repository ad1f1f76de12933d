package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Traffic: решения валидатора по классам
	Classifications *prometheus.CounterVec

	// Latency: время выполнения процесса (только для реально запущенных)
	ExecutionDuration *prometheus.HistogramVec

	// Errors: классификация отказов
	ErrorTotal *prometheus.CounterVec

	// Saturation: сколько запросов сейчас ждут оператора
	PendingCommands prometheus.Gauge

	// Подписчики, упавшие при доставке события
	SubscriberFailures *prometheus.CounterVec

	// Состояние Circuit Breaker внешних синков (0 - ок, 1 - выбило)
	CircuitBreakerState *prometheus.GaugeVec

	// События, сброшенные при переполнении буфера форвардера
	EventsDropped *prometheus.CounterVec

	// Audit: заполненность буфера (backpressure)
	AuditBufferFill prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		Classifications: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "cmdgate_classifications_total",
			Help: "Total number of validator decisions by classification.",
		}, []string{"classification"}),

		ExecutionDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cmdgate_execution_duration_seconds",
			Help:    "Histogram of process execution latencies.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"command", "status"}),

		ErrorTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "cmdgate_errors_total",
			Help: "Total number of errors by type.",
		}, []string{"type"}), // типы: unauthorized, forbidden, denied, execution, timeout

		PendingCommands: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "cmdgate_pending_commands",
			Help: "Current number of commands awaiting operator decision.",
		}),

		SubscriberFailures: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "cmdgate_subscriber_failures_total",
			Help: "Total number of event subscriber panics.",
		}, []string{"event"}),

		CircuitBreakerState: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "cmdgate_circuit_breaker_state",
			Help: "Current state of the circuit breaker (0=closed, 1=open).",
		}, []string{"sink"}),

		EventsDropped: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "cmdgate_events_dropped_total",
			Help: "Events dropped because the forwarder buffer was full.",
		}, []string{"sink"}),

		AuditBufferFill: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "cmdgate_audit_buffer_utilization",
			Help: "Current number of events in audit buffer.",
		}),
	}
}
