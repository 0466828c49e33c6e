package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"carereminders/internal/types"
)

// PrometheusNotificationMetrics implements NotificationMetrics with
// collectors registered on a caller-supplied registerer. Used by the
// long-running daemon, which serves them on /metrics.
type PrometheusNotificationMetrics struct {
	deliveries  *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	runCounters *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
}

var _ NotificationMetrics = (*PrometheusNotificationMetrics)(nil)

// NewPrometheusNotificationMetrics creates and registers the collectors.
func NewPrometheusNotificationMetrics(reg prometheus.Registerer) *PrometheusNotificationMetrics {
	m := &PrometheusNotificationMetrics{
		deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reminders_deliveries_total",
				Help: "Reminder deliveries by channel and result",
			},
			[]string{"channel", "result"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reminders_delivery_duration_seconds",
				Help:    "Time spent delivering a single reminder",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"channel"},
		),
		runCounters: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reminders_run_events_total",
				Help: "Per-run counters reported by scheduler and dispatcher runs",
			},
			[]string{"task", "metric"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reminders_run_duration_seconds",
				Help:    "Duration of scheduler and dispatcher runs",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 240},
			},
			[]string{"task"},
		),
	}
	reg.MustRegister(m.deliveries, m.latency, m.runCounters, m.runDuration)
	return m
}

func (m *PrometheusNotificationMetrics) RecordDelivery(_ context.Context, method types.NotificationMethod, result MetricResult) {
	m.deliveries.WithLabelValues(string(method), string(result)).Inc()
}

func (m *PrometheusNotificationMetrics) RecordLatency(_ context.Context, method types.NotificationMethod, duration time.Duration) {
	m.latency.WithLabelValues(string(method)).Observe(duration.Seconds())
}

func (m *PrometheusNotificationMetrics) RecordRun(_ context.Context, task string, counters map[string]float64, duration time.Duration) {
	for name, v := range counters {
		m.runCounters.WithLabelValues(task, name).Add(v)
	}
	m.runDuration.WithLabelValues(task).Observe(duration.Seconds())
}

// MultiMetrics fans out to several NotificationMetrics.
type MultiMetrics []NotificationMetrics

func (mm MultiMetrics) RecordDelivery(ctx context.Context, method types.NotificationMethod, result MetricResult) {
	for _, m := range mm {
		m.RecordDelivery(ctx, method, result)
	}
}

func (mm MultiMetrics) RecordLatency(ctx context.Context, method types.NotificationMethod, duration time.Duration) {
	for _, m := range mm {
		m.RecordLatency(ctx, method, duration)
	}
}

func (mm MultiMetrics) RecordRun(ctx context.Context, task string, counters map[string]float64, duration time.Duration) {
	for _, m := range mm {
		m.RecordRun(ctx, task, counters, duration)
	}
}
