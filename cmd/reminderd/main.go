// Package main is the long-running reminder daemon for deployments without
// Lambda. It triggers both reminder tasks on cron schedules and serves
// Prometheus metrics.
//
// Usage:
//
//	reminderd                 # cron specs from REMINDER_SCHEDULE_CRON / REMINDER_DISPATCH_CRON
//	reminderd --cloudwatch    # also publish run metrics to CloudWatch
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"carereminders/internal/app"
	"carereminders/internal/config"
	"carereminders/internal/notifications/core"
	"carereminders/internal/scheduler"
	"carereminders/internal/types"
)

// TaskRunner runs one reminder task.
type TaskRunner interface {
	Run(ctx context.Context, payload scheduler.TaskPayload) (scheduler.RunOutcome, error)
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}

// registerJobs adds one cron entry per task. Overlapping ticks of the same
// entry are skipped in-process; the job lock covers other replicas.
func registerJobs(ctx context.Context, c *cron.Cron, specs map[scheduler.TaskType]string, runner TaskRunner, logger *slog.Logger) error {
	for _, task := range scheduler.AllTasks {
		spec, ok := specs[task]
		if !ok || spec == "" {
			continue
		}
		if _, err := c.AddJob(spec, taskJob(ctx, task, runner, logger)); err != nil {
			return fmt.Errorf("scheduling %s with %q: %w", task, spec, err)
		}
		logger.Info("task scheduled", "task", string(task), "spec", spec)
	}
	return nil
}

func taskJob(ctx context.Context, task scheduler.TaskType, runner TaskRunner, logger *slog.Logger) cron.Job {
	return cron.FuncJob(func() {
		out, err := runner.Run(ctx, scheduler.TaskPayload{Task: task})
		if err != nil {
			logger.Error("scheduled task failed", "task", string(task), "error", err)
			return
		}
		if out.Skipped {
			logger.Info("scheduled task skipped", "task", string(task))
		}
	})
}

// newMetricsServer serves /metrics from reg plus a liveness probe.
func newMetricsServer(addr string, reg *prometheus.Registry) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// serve runs the metrics server and the cron scheduler until ctx is done or
// the listener fails. In-flight runs finish before it returns.
func serve(ctx context.Context, srv *http.Server, c *cron.Cron, logger *slog.Logger) error {
	srvErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
		close(srvErr)
	}()

	c.Start()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-srvErr:
		if err != nil {
			logger.Error("metrics server failed", "error", err)
			runErr = fmt.Errorf("metrics server: %w", err)
		}
	}

	// Wait for in-flight runs before the caller closes the pool.
	<-c.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics server shutdown", "error", err)
	}
	return runErr
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	withCloudWatch := flag.Bool("cloudwatch", false, "Also publish run metrics to CloudWatch")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig(config.NewSecretProvider(os.Getenv("APP_ENV"), os.Getenv("AWS_REGION")))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logger := app.NewLogger(os.Stdout, cfg.LogLevel, true)
	logger.Info("reminder daemon starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"metrics_addr", cfg.Observability.MetricsAddr,
	)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return fmt.Errorf("loading AWS config: %w", err)
	}
	if cfg.AWS.EndpointURL != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := core.MultiMetrics{core.NewPrometheusNotificationMetrics(reg)}
	if *withCloudWatch {
		metrics = append(metrics, core.NewCloudWatchNotificationMetrics(
			cloudwatch.NewFromConfig(awsCfg),
			cfg.Observability.MetricNamespace,
			types.NewSlogAdapter(logger),
		))
	}

	engine, err := app.New(ctx, cfg, awsCfg, app.Options{Logger: logger, Metrics: metrics})
	if err != nil {
		return err
	}
	defer engine.Close()

	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger: logger})),
	)
	specs := map[scheduler.TaskType]string{
		scheduler.TaskScheduleReminders: cfg.Reminders.ScheduleCron,
		scheduler.TaskDispatchReminders: cfg.Reminders.DispatchCron,
	}
	if err := registerJobs(ctx, c, specs, engine.Runner, logger); err != nil {
		return err
	}

	srv := newMetricsServer(cfg.Observability.MetricsAddr, reg)
	if err := serve(ctx, srv, c, logger); err != nil {
		return err
	}
	logger.Info("reminder daemon stopped")
	return nil
}
