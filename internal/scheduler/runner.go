package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"carereminders/internal/notifications/core"
	"carereminders/internal/types"
)

// Runner defaults.
const (
	DefaultLockTTL     = 15 * time.Minute
	DefaultRunDeadline = 4 * time.Minute
)

// Job history statuses written by the runner.
const (
	historySuccess = "success"
	historyFailed  = "failed"
)

// JobLocker abstracts the distributed lock.
type JobLocker interface {
	Acquire(ctx context.Context, lockID string, workerID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, lockID string, workerID string) error
}

// JobHistorian abstracts job history recording.
type JobHistorian interface {
	Start(ctx context.Context, jobType string) (int64, error)
	Finish(ctx context.Context, id int64, status string, items int, err error) error
}

// ScheduleService is the scheduling phase.
type ScheduleService interface {
	ScheduleUpcomingAppointmentReminders(ctx context.Context, windowMinutes int) (ScheduleResult, error)
}

// DispatchService is the delivery phase.
type DispatchService interface {
	ProcessDueScheduledNotifications(ctx context.Context, batchSize int) (core.DispatchResult, error)
}

// RunnerConfig holds the dependencies of a TaskRunner. Locks and History are
// optional; without them every run executes and nothing is recorded.
type RunnerConfig struct {
	Scheduler  ScheduleService
	Dispatcher DispatchService
	Locks      JobLocker
	History    JobHistorian

	WorkerID      string
	WindowMinutes int
	BatchSize     int
	LockTTL       time.Duration
	RunDeadline   time.Duration
	Logger        *slog.Logger
}

// TaskRunner executes one reminder task per trigger. Overlapping triggers of
// the same task are skipped while the lock is held.
type TaskRunner struct {
	cfg    RunnerConfig
	logger *slog.Logger
}

// RunOutcome reports what a trigger did.
type RunOutcome struct {
	Task     TaskType             `json:"task"`
	RunID    string               `json:"run_id"`
	Skipped  bool                 `json:"skipped,omitempty"`
	Items    int                  `json:"items"`
	Schedule *ScheduleResult      `json:"schedule,omitempty"`
	Dispatch *core.DispatchResult `json:"dispatch,omitempty"`
}

// NewTaskRunner creates a TaskRunner.
func NewTaskRunner(cfg RunnerConfig) *TaskRunner {
	if cfg.WorkerID == "" {
		cfg.WorkerID = uuid.NewString()
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = DefaultLockTTL
	}
	if cfg.RunDeadline <= 0 {
		cfg.RunDeadline = DefaultRunDeadline
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskRunner{cfg: cfg, logger: logger.With("worker_id", cfg.WorkerID)}
}

// LockID returns the job_locks key for task.
func LockID(task TaskType) string {
	return "reminders:" + string(task)
}

// Run executes payload.Task:
//  1. Pin the reference time when the payload carries one.
//  2. Acquire the task lock; a held lock skips the run.
//  3. Record the start in job history.
//  4. Run the phase under the run deadline.
//  5. Record the outcome and release the lock.
func (r *TaskRunner) Run(ctx context.Context, payload TaskPayload) (RunOutcome, error) {
	if _, err := ParseTaskType(string(payload.Task)); err != nil {
		return RunOutcome{}, types.NewAppError(types.ErrCodeValidationMissingField, err.Error(), nil)
	}

	runID := types.GetRunID(ctx)
	if runID == "" {
		runID = uuid.NewString()
		ctx = types.WithRunID(ctx, runID)
	}
	if payload.ReferenceTime != nil {
		ctx = types.WithReferenceTime(ctx, *payload.ReferenceTime)
	}
	out := RunOutcome{Task: payload.Task, RunID: runID}
	logger := r.logger.With("task", string(payload.Task), "run_id", runID)
	ctx = types.WithLogger(ctx, types.NewSlogAdapter(logger))

	lockID := LockID(payload.Task)
	if r.cfg.Locks != nil {
		acquired, err := r.cfg.Locks.Acquire(ctx, lockID, r.cfg.WorkerID, r.cfg.LockTTL)
		if err != nil {
			return out, fmt.Errorf("acquiring job lock %s: %w", lockID, err)
		}
		if !acquired {
			logger.InfoContext(ctx, "job lock held by another worker, skipping", "lock_id", lockID)
			out.Skipped = true
			return out, nil
		}
		defer func() {
			// Released on a fresh context so a cancelled run still frees the lock.
			relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := r.cfg.Locks.Release(relCtx, lockID, r.cfg.WorkerID); err != nil {
				logger.WarnContext(ctx, "failed to release job lock", "lock_id", lockID, "error", err)
			}
		}()
	}

	var historyID int64
	if r.cfg.History != nil {
		id, err := r.cfg.History.Start(ctx, string(payload.Task))
		if err != nil {
			logger.ErrorContext(ctx, "failed to start job history", "error", err)
		} else {
			historyID = id
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, r.cfg.RunDeadline)
	execErr := r.execute(runCtx, payload.Task, &out)
	cancel()

	if historyID != 0 {
		status := historySuccess
		if execErr != nil {
			status = historyFailed
		}
		if err := r.cfg.History.Finish(context.WithoutCancel(ctx), historyID, status, out.Items, execErr); err != nil {
			logger.ErrorContext(ctx, "failed to finish job history", "history_id", historyID, "error", err)
		}
	}

	if execErr != nil {
		logger.ErrorContext(ctx, "reminder task failed", "error", execErr, "items", out.Items)
		return out, fmt.Errorf("task %s failed: %w", payload.Task, execErr)
	}
	logger.InfoContext(ctx, "reminder task complete", "items", out.Items)
	return out, nil
}

func (r *TaskRunner) execute(ctx context.Context, task TaskType, out *RunOutcome) error {
	switch task {
	case TaskScheduleReminders:
		if r.cfg.Scheduler == nil {
			return fmt.Errorf("no scheduler configured")
		}
		res, err := r.cfg.Scheduler.ScheduleUpcomingAppointmentReminders(ctx, r.cfg.WindowMinutes)
		out.Schedule, out.Items = &res, res.Scheduled
		return err

	case TaskDispatchReminders:
		if r.cfg.Dispatcher == nil {
			return fmt.Errorf("no dispatcher configured")
		}
		res, err := r.cfg.Dispatcher.ProcessDueScheduledNotifications(ctx, r.cfg.BatchSize)
		out.Dispatch, out.Items = &res, res.Processed
		return err
	}
	return fmt.Errorf("unhandled task %q", task)
}
