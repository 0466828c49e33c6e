// Package core dispatches due reminder jobs to the channel senders and
// records the terminal status of each job. It owns the job store and
// metrics contracts shared by the delivery path.
package core

import (
	"context"
	"time"

	"carereminders/internal/types"
)

// JobStore is the subset of the scheduled-notification store used by the
// dispatcher.
type JobStore interface {
	// FindDue returns up to limit PENDING jobs with scheduled_for <= now,
	// oldest first.
	FindDue(ctx context.Context, now time.Time, limit int) ([]*types.ScheduledNotification, error)

	// MarkStatus moves a PENDING job to SENT or FAILED exactly once.
	// A second transition returns ErrCodeConflictTerminalStatus.
	MarkStatus(ctx context.Context, id string, status types.JobStatus, reason string) error
}

// MetricResult categorizes a delivery outcome for metrics reporting.
type MetricResult string

const (
	MetricSuccess MetricResult = "success"
	MetricFailed  MetricResult = "failed"
)

// NotificationMetrics abstracts telemetry for reminder runs.
type NotificationMetrics interface {
	RecordDelivery(ctx context.Context, method types.NotificationMethod, result MetricResult)
	RecordLatency(ctx context.Context, method types.NotificationMethod, duration time.Duration)
	// RecordRun emits one data point per counter (keyed by metric name) plus
	// the run duration, all tagged with task.
	RecordRun(ctx context.Context, task string, counters map[string]float64, duration time.Duration)
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) RecordDelivery(context.Context, types.NotificationMethod, MetricResult) {}
func (NoopMetrics) RecordLatency(context.Context, types.NotificationMethod, time.Duration) {}
func (NoopMetrics) RecordRun(context.Context, string, map[string]float64, time.Duration)   {}

// DispatchResult summarizes one ProcessDueScheduledNotifications run.
// Processed always equals Sent + Failed.
type DispatchResult struct {
	Processed int           `json:"processed"`
	Sent      int           `json:"sent"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}
