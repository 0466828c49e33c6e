package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"carereminders/internal/notifications/core"
	"carereminders/internal/preferences"
	"carereminders/internal/types"
)

// DefaultScheduleConcurrency bounds how many appointments are processed at once.
const DefaultScheduleConcurrency = 4

// AppointmentSource returns appointments starting inside a window.
//
// SQL: SELECT ... FROM appointments
//
//	WHERE start_time BETWEEN $1 AND $2 AND status = ANY($3)
type AppointmentSource interface {
	FindUpcoming(ctx context.Context, windowStart, windowEnd time.Time, statuses []types.AppointmentStatus) ([]*types.Appointment, error)
}

// ReminderJobStore is the write side of the scheduled-notification store.
type ReminderJobStore interface {
	// FindExisting returns the non-cancelled job for the dedup key, or nil.
	FindExisting(ctx context.Context, userID, appointmentID string, method types.NotificationMethod, minutesBefore int) (*types.ScheduledNotification, error)
	// Create inserts a PENDING job. created is false when the dedup key is
	// already taken.
	Create(ctx context.Context, n *types.ScheduledNotification) (created bool, err error)
}

// ReminderSchedulerConfig holds the dependencies of a ReminderScheduler.
type ReminderSchedulerConfig struct {
	Appointments AppointmentSource
	Recipients   types.RecipientLookup
	Jobs         ReminderJobStore
	Resolver     *preferences.Resolver
	Metrics      core.NotificationMetrics
	Clock        types.Clock
	Logger       *slog.Logger

	Concurrency int
	// UseMocks makes every run a no-op returning a zero result.
	UseMocks bool
}

// ReminderScheduler creates per-recipient, per-channel reminder jobs for
// upcoming confirmed appointments. Repeated runs over the same window never
// create duplicate jobs.
type ReminderScheduler struct {
	appointments AppointmentSource
	recipients   types.RecipientLookup
	jobs         ReminderJobStore
	resolver     *preferences.Resolver
	metrics      core.NotificationMetrics
	clock        types.Clock
	logger       *slog.Logger
	concurrency  int
	useMocks     bool
}

// NewReminderScheduler creates a ReminderScheduler.
func NewReminderScheduler(cfg ReminderSchedulerConfig) *ReminderScheduler {
	if cfg.Resolver == nil {
		cfg.Resolver = preferences.NewResolver(preferences.DefaultPreference)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = core.NoopMetrics{}
	}
	if cfg.Clock == nil {
		cfg.Clock = types.RealClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultScheduleConcurrency
	}
	return &ReminderScheduler{
		appointments: cfg.Appointments,
		recipients:   cfg.Recipients,
		jobs:         cfg.Jobs,
		resolver:     cfg.Resolver,
		metrics:      cfg.Metrics,
		clock:        cfg.Clock,
		logger:       cfg.Logger,
		concurrency:  cfg.Concurrency,
		useMocks:     cfg.UseMocks,
	}
}

// scheduleCounters are shared by the appointment workers of one run.
type scheduleCounters struct {
	scheduled   atomic.Int64
	existing    atomic.Int64
	unreachable atomic.Int64
	failed      atomic.Int64
}

// ScheduleUpcomingAppointmentReminders scans CONFIRMED appointments starting
// within windowMinutes of now and creates the missing reminder jobs.
//
// Only a failure to list appointments is returned as an error. Recipient and
// job failures are logged and counted in Failed. A run cut short by ctx
// returns the partial result together with the context error.
func (s *ReminderScheduler) ScheduleUpcomingAppointmentReminders(ctx context.Context, windowMinutes int) (ScheduleResult, error) {
	if windowMinutes <= 0 {
		return ScheduleResult{}, types.NewAppError(types.ErrCodeValidationWindowMinutes,
			fmt.Sprintf("window must be a positive number of minutes, got %d", windowMinutes), nil)
	}
	if s.useMocks {
		s.logger.InfoContext(ctx, "calendar mocks enabled, skipping reminder scheduling")
		return ScheduleResult{}, nil
	}

	began := time.Now()
	now := types.Now(ctx, s.clock)
	windowEnd := now.Add(time.Duration(windowMinutes) * time.Minute)
	logger := s.logger.With("task", string(TaskScheduleReminders), "run_id", types.GetRunID(ctx))

	appts, err := s.appointments.FindUpcoming(ctx, now, windowEnd, types.ReminderEligibleStatuses)
	if err != nil {
		return ScheduleResult{}, fmt.Errorf("listing upcoming appointments: %w", err)
	}

	var c scheduleCounters
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, appt := range appts {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			s.scheduleAppointment(ctx, logger, appt, now, &c)
			return nil
		})
	}
	_ = g.Wait()

	result := ScheduleResult{
		Scanned:            len(appts),
		Scheduled:          int(c.scheduled.Load()),
		SkippedExisting:    int(c.existing.Load()),
		SkippedUnreachable: int(c.unreachable.Load()),
		Failed:             int(c.failed.Load()),
		Duration:           time.Since(began),
	}

	s.metrics.RecordRun(ctx, string(TaskScheduleReminders), map[string]float64{
		types.MetricAppointmentsScanned:  float64(result.Scanned),
		types.MetricRemindersScheduled:   float64(result.Scheduled),
		types.MetricRemindersSkipped:     float64(result.SkippedExisting),
		types.MetricRemindersUnreachable: float64(result.SkippedUnreachable),
		types.MetricScheduleFailed:       float64(result.Failed),
	}, result.Duration)

	logger.InfoContext(ctx, "schedule run complete",
		"window_minutes", windowMinutes,
		"scanned", result.Scanned,
		"scheduled", result.Scheduled,
		"skipped_existing", result.SkippedExisting,
		"skipped_unreachable", result.SkippedUnreachable,
		"failed", result.Failed,
		"duration_ms", result.Duration.Milliseconds(),
	)

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("schedule run interrupted: %w", err)
	}
	return result, nil
}

func (s *ReminderScheduler) scheduleAppointment(ctx context.Context, logger *slog.Logger, appt *types.Appointment, now time.Time, c *scheduleCounters) {
	apptLogger := logger.With("appointment_id", appt.ID)

	for _, userID := range appt.RecipientIDs() {
		recipient, err := s.recipients.GetByID(ctx, userID)
		if err != nil {
			c.failed.Add(1)
			if types.HasCode(err, types.ErrCodeNotFoundUser) {
				apptLogger.WarnContext(ctx, "reminder recipient not found", "user_id", userID)
			} else {
				apptLogger.ErrorContext(ctx, "failed to load reminder recipient", "user_id", userID, "error", err)
			}
			continue
		}

		pref := s.resolver.Resolve(recipient.Preferences, appt.OrganizationPreferences)
		tz := recipient.Timezone
		if tz == "" {
			tz = types.DefaultTimezone
		}

		for _, method := range pref.Channels {
			for _, offset := range pref.Offsets {
				fireAt := appt.StartTime.Add(-time.Duration(offset) * time.Minute)
				if !fireAt.After(now) {
					c.unreachable.Add(1)
					continue
				}
				s.ensureJob(ctx, apptLogger, appt, userID, method, offset, fireAt, tz, c)
			}
		}
	}
}

// ensureJob creates the job for one dedup key unless it already exists.
func (s *ReminderScheduler) ensureJob(ctx context.Context, logger *slog.Logger, appt *types.Appointment, userID string, method types.NotificationMethod, offset int, fireAt time.Time, tz string, c *scheduleCounters) {
	existing, err := s.jobs.FindExisting(ctx, userID, appt.ID, method, offset)
	if err != nil {
		c.failed.Add(1)
		logger.ErrorContext(ctx, "failed to check existing reminder",
			"user_id", userID, "method", string(method), "minutes_before", offset, "error", err)
		return
	}
	if existing != nil {
		c.existing.Add(1)
		return
	}

	job := &types.ScheduledNotification{
		UserID:       userID,
		Type:         types.NotificationAppointmentReminder,
		Method:       method,
		ScheduledFor: fireAt.UTC(),
		Payload: types.ReminderPayload{
			AppointmentID: appt.ID,
			Title:         appt.Title,
			StartTime:     appt.StartTime.UTC().Format(time.RFC3339),
			MinutesBefore: offset,
			Method:        method,
			Timezone:      tz,
		},
	}
	created, err := s.jobs.Create(ctx, job)
	switch {
	case err != nil && types.HasCode(err, types.ErrCodeConflictAlreadyScheduled):
		c.existing.Add(1)
	case err != nil:
		c.failed.Add(1)
		logger.ErrorContext(ctx, "failed to create reminder",
			"user_id", userID, "method", string(method), "minutes_before", offset, "error", err)
	case !created:
		c.existing.Add(1)
	default:
		c.scheduled.Add(1)
	}
}
