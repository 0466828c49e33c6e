// Package app assembles the reminder engine from configuration. Every entry
// point (Lambda worker, daemon, job runner) builds the same object graph
// through New so that wiring lives in one place.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/jackc/pgx/v5/pgxpool"

	"carereminders/internal/config"
	"carereminders/internal/db"
	"carereminders/internal/external"
	"carereminders/internal/notifications/core"
	"carereminders/internal/notifications/email"
	"carereminders/internal/notifications/inapp"
	"carereminders/internal/notifications/push"
	"carereminders/internal/notifications/sms"
	"carereminders/internal/preferences"
	"carereminders/internal/scheduler"
	"carereminders/internal/types"
)

// Options tune how New builds the graph.
type Options struct {
	Logger *slog.Logger
	// Metrics defaults to NoopMetrics.
	Metrics core.NotificationMetrics
	// Clock defaults to the wall clock.
	Clock types.Clock
	// Stubs forces logging stub transports.
	Stubs          bool
	PushHTTPClient *http.Client
	WorkerID       string
}

// App is the assembled reminder engine.
type App struct {
	Config     *config.Config
	Pool       *pgxpool.Pool
	Transports *external.ClientRegistry
	Scheduler  *scheduler.ReminderScheduler
	Dispatcher *core.Dispatcher
	Runner     *scheduler.TaskRunner
	Senders    []types.ChannelSender
}

// New connects to the database and builds the engine.
func New(ctx context.Context, cfg *config.Config, awsCfg aws.Config, opts Options) (*App, error) {
	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	a := Assemble(cfg, pool, NewTransports(cfg, awsCfg, opts), opts)
	a.Pool = pool
	return a, nil
}

// NewTransports builds the delivery transports honoring opts.Stubs.
func NewTransports(cfg *config.Config, awsCfg aws.Config, opts Options) *external.ClientRegistry {
	var regOpts []external.RegistryOption
	if opts.Stubs {
		regOpts = append(regOpts, external.WithStubs())
	}
	if opts.PushHTTPClient != nil {
		regOpts = append(regOpts, external.WithPushHTTPClient(opts.PushHTTPClient))
	}
	return external.NewClientRegistry(cfg, awsCfg, opts.Logger, regOpts...)
}

// Assemble wires repositories over conn, senders over transports, and the
// two phases plus the task runner on top.
func Assemble(cfg *config.Config, conn db.DBTX, transports *external.ClientRegistry, opts Options) *App {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	typed := types.NewSlogAdapter(logger)
	metrics := opts.Metrics
	if metrics == nil {
		metrics = core.NoopMetrics{}
	}
	clock := opts.Clock
	if clock == nil {
		clock = types.RealClock{}
	}

	jobs := db.NewScheduledNotificationRepository(conn)
	recipients := db.NewRecipientRepository(conn)
	senders := Senders(cfg, transports, conn, typed)

	sched := scheduler.NewReminderScheduler(scheduler.ReminderSchedulerConfig{
		Appointments: db.NewAppointmentRepository(conn),
		Recipients:   recipients,
		Jobs:         jobs,
		Resolver:     preferences.NewResolver(preferences.DefaultPreference),
		Metrics:      metrics,
		Clock:        clock,
		Logger:       logger.With("component", "scheduler"),
		Concurrency:  cfg.Reminders.ScheduleConcurrency,
		UseMocks:     cfg.Feature.UseMocks,
	})

	dispatcher := core.NewDispatcher(core.DispatcherConfig{
		Jobs:        jobs,
		Recipients:  recipients,
		Senders:     senders,
		Metrics:     metrics,
		Clock:       clock,
		Logger:      typed.With("component", "dispatcher"),
		Concurrency: cfg.Reminders.DispatchConcurrency,
		SendTimeout: cfg.Reminders.SendTimeout,
	})

	runner := scheduler.NewTaskRunner(scheduler.RunnerConfig{
		Scheduler:     sched,
		Dispatcher:    dispatcher,
		Locks:         db.NewJobLockRepository(conn),
		History:       db.NewJobHistoryRepository(conn),
		WorkerID:      opts.WorkerID,
		WindowMinutes: cfg.Reminders.WindowMinutes,
		BatchSize:     cfg.Reminders.BatchSize,
		LockTTL:       cfg.Reminders.LockTTL,
		RunDeadline:   cfg.Reminders.RunDeadline,
		Logger:        logger.With("component", "runner"),
	})

	return &App{
		Config:     cfg,
		Transports: transports,
		Scheduler:  sched,
		Dispatcher: dispatcher,
		Runner:     runner,
		Senders:    senders,
	}
}

// Senders returns one sender per channel whose feature flag is on and whose
// transport is configured. A job for a missing channel fails with
// "no sender for method".
func Senders(cfg *config.Config, transports *external.ClientRegistry, conn db.DBTX, logger types.Logger) []types.ChannelSender {
	var out []types.ChannelSender
	if cfg.Feature.EnableEmail {
		out = append(out, email.NewSender(email.SenderConfig{
			Transport:   transports.Email,
			FromName:    cfg.Email.FromName,
			FromAddress: cfg.Email.FromAddress,
			Logger:      logger.With("channel", "email"),
		}))
	}
	if cfg.Feature.EnableSMS {
		out = append(out, sms.NewSender(transports.SMS, logger.With("channel", "sms")))
	}
	if cfg.Feature.EnablePush && transports.Push != nil {
		out = append(out, push.NewSender(transports.Push, db.NewPushSubscriptionRepository(conn), logger.With("channel", "push")))
	}
	if cfg.Feature.EnableInApp {
		out = append(out, inapp.NewSender(db.NewInAppNotificationRepository(conn)))
	}
	return out
}

// Close releases the database pool.
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
}

// NewLogger returns a slog logger at level writing JSON, or text when json
// is false.
func NewLogger(w io.Writer, level string, json bool) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
