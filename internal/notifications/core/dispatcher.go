package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"carereminders/internal/types"
)

// Dispatcher defaults.
const (
	DefaultDispatchConcurrency = 8
	DefaultSendTimeout         = 15 * time.Second
)

// DispatcherConfig holds the dependencies needed to create a Dispatcher.
type DispatcherConfig struct {
	Jobs       JobStore
	Recipients types.RecipientLookup
	Senders    []types.ChannelSender
	Metrics    NotificationMetrics
	Clock      types.Clock
	Logger     types.Logger

	// Concurrency bounds the number of jobs delivered at once.
	Concurrency int
	// SendTimeout bounds recipient lookup plus delivery for a single job.
	SendTimeout time.Duration
}

// Dispatcher delivers due reminder jobs. Each job is delivered at most once:
// success marks it SENT, any failure marks it FAILED, and FAILED jobs are
// never retried.
type Dispatcher struct {
	jobs        JobStore
	recipients  types.RecipientLookup
	senders     map[types.NotificationMethod]types.ChannelSender
	metrics     NotificationMetrics
	clock       types.Clock
	logger      types.Logger
	concurrency int
	sendTimeout time.Duration
}

// NewDispatcher creates a Dispatcher. When two senders report the same
// method the later one wins.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	senders := make(map[types.NotificationMethod]types.ChannelSender, len(cfg.Senders))
	for _, s := range cfg.Senders {
		senders[s.Method()] = s
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NoopMetrics{}
	}
	if cfg.Clock == nil {
		cfg.Clock = types.RealClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = types.NewSlogAdapter(slog.Default())
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultDispatchConcurrency
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultSendTimeout
	}
	return &Dispatcher{
		jobs:        cfg.Jobs,
		recipients:  cfg.Recipients,
		senders:     senders,
		metrics:     cfg.Metrics,
		clock:       cfg.Clock,
		logger:      cfg.Logger,
		concurrency: cfg.Concurrency,
		sendTimeout: cfg.SendTimeout,
	}
}

// ProcessDueScheduledNotifications delivers up to batchSize due jobs.
//
// Jobs are independent: one job's failure never affects another. Only a
// failure to read the due batch is returned as an error; everything after
// that is counted in the result.
func (d *Dispatcher) ProcessDueScheduledNotifications(ctx context.Context, batchSize int) (DispatchResult, error) {
	if batchSize <= 0 {
		return DispatchResult{}, types.NewAppError(types.ErrCodeValidationBatchSize,
			fmt.Sprintf("batch size must be positive, got %d", batchSize), nil)
	}

	began := time.Now()
	now := types.Now(ctx, d.clock)
	logger := d.runLogger(ctx)

	due, err := d.jobs.FindDue(ctx, now, batchSize)
	if err != nil {
		return DispatchResult{}, fmt.Errorf("find due scheduled notifications: %w", err)
	}

	var sent, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for _, job := range due {
		g.Go(func() error {
			if d.processJob(ctx, logger, job) {
				sent.Add(1)
			} else {
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	result := DispatchResult{
		Sent:     int(sent.Load()),
		Failed:   int(failed.Load()),
		Duration: time.Since(began),
	}
	result.Processed = result.Sent + result.Failed

	d.metrics.RecordRun(ctx, types.TaskDispatchReminders, map[string]float64{
		types.MetricDispatchProcessed: float64(result.Processed),
		types.MetricDeliverySuccess:   float64(result.Sent),
		types.MetricDeliveryFailed:    float64(result.Failed),
	}, result.Duration)

	logger.Info("dispatch run complete",
		"due", len(due),
		"processed", result.Processed,
		"sent", result.Sent,
		"failed", result.Failed,
		"duration_ms", result.Duration.Milliseconds(),
	)
	return result, nil
}

// runLogger prefers the run-scoped logger a trigger placed on ctx.
func (d *Dispatcher) runLogger(ctx context.Context) types.Logger {
	if l := types.LoggerFromContext(ctx); l != nil {
		return l
	}
	return d.logger.With("task", types.TaskDispatchReminders, "run_id", types.GetRunID(ctx))
}

// processJob delivers one job and writes its terminal status. It reports
// whether the job ended up SENT.
func (d *Dispatcher) processJob(ctx context.Context, logger types.Logger, job *types.ScheduledNotification) bool {
	jobLogger := logger.With("job_id", job.ID, "user_id", job.UserID, "method", string(job.Method))
	began := time.Now()

	jobCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	ok, reason := d.deliver(jobCtx, job)
	cancel()

	d.metrics.RecordLatency(ctx, job.Method, time.Since(began))

	status := types.JobStatusSent
	if !ok {
		status = types.JobStatusFailed
	}
	if err := d.jobs.MarkStatus(ctx, job.ID, status, reason); err != nil {
		// The job stays PENDING (or was finished by someone else) and is
		// not counted as sent by this run.
		jobLogger.Error("failed to record delivery status",
			"status", string(status),
			"error", err.Error(),
		)
		d.metrics.RecordDelivery(ctx, job.Method, MetricFailed)
		return false
	}

	if ok {
		jobLogger.Info("reminder delivered")
		d.metrics.RecordDelivery(ctx, job.Method, MetricSuccess)
		return true
	}
	jobLogger.Warn("reminder delivery failed", "reason", reason)
	d.metrics.RecordDelivery(ctx, job.Method, MetricFailed)
	return false
}

// deliver resolves the recipient and routes the message to the sender for
// job.Method. It returns a failure reason when delivery did not succeed.
func (d *Dispatcher) deliver(ctx context.Context, job *types.ScheduledNotification) (ok bool, reason string) {
	sender, found := d.senders[job.Method]
	if !found {
		return false, fmt.Sprintf("no sender for method %q", job.Method)
	}

	recipient, err := d.recipients.GetByID(ctx, job.UserID)
	if err != nil {
		if types.HasCode(err, types.ErrCodeNotFoundUser) {
			return false, "recipient not found"
		}
		return false, failureReason(ctx, "recipient lookup failed", err)
	}

	outcome, err := safeDeliver(ctx, sender, recipient, BuildReminderMessage(job))
	if err != nil {
		return false, failureReason(ctx, "delivery error", err)
	}
	if !outcome.Success {
		if outcome.Reason == "" {
			return false, "delivery unsuccessful"
		}
		return false, outcome.Reason
	}
	return true, ""
}

// safeDeliver converts a sender panic into an error so a single faulty
// sender cannot take down the batch.
func safeDeliver(ctx context.Context, sender types.ChannelSender, recipient *types.Recipient, msg types.ReminderMessage) (out types.DeliveryOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sender panic: %v", r)
		}
	}()
	return sender.Deliver(ctx, recipient, msg)
}

func failureReason(ctx context.Context, prefix string, err error) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return prefix + ": send timed out"
	}
	return prefix + ": " + err.Error()
}
