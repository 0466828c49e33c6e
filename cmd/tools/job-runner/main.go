// Package main implements the job-runner CLI for invoking reminder tasks
// directly, bypassing the Lambda shim.
//
// Usage:
//
//	go run ./cmd/tools/job-runner --list
//	go run ./cmd/tools/job-runner --task=schedule_reminders
//	go run ./cmd/tools/job-runner --task=dispatch_reminders --reference-time=2026-01-15T02:00:00Z
//	go run ./cmd/tools/job-runner --task=dispatch_reminders --dry-run
//	go run ./cmd/tools/job-runner --task=dispatch_reminders --print
//	go run ./cmd/tools/job-runner --task=schedule_reminders --enqueue
//	go run ./cmd/tools/job-runner --migrate
//
// --dry-run executes against the real database but delivers through logging
// stubs, so jobs are marked without anything reaching a recipient.
// --print only renders the JSON payload. --enqueue sends the payload to the
// reminder task queue for the worker to pick up.
//
// Configuration comes from the environment (or a .env file via godotenv).
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"carereminders/internal/app"
	"carereminders/internal/config"
	"carereminders/internal/db"
	"carereminders/internal/queue"
	"carereminders/internal/scheduler"
	"carereminders/internal/types"
)

var taskDescriptions = map[scheduler.TaskType]string{
	scheduler.TaskScheduleReminders: "Create reminder jobs for confirmed appointments in the upcoming window",
	scheduler.TaskDispatchReminders: "Deliver due reminder jobs and record SENT/FAILED",
}

// options is the parsed command line.
type options struct {
	task    scheduler.TaskType
	refTime *time.Time
	list    bool
	dryRun  bool
	print   bool
	enqueue bool
	migrate bool
}

var errUsage = errors.New("usage")

func parseArgs(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("job-runner", flag.ContinueOnError)
	fs.SetOutput(stderr)
	taskFlag := fs.String("task", "", "Task to execute (schedule_reminders, dispatch_reminders)")
	refFlag := fs.String("reference-time", "", "Override \"now\" (RFC3339, e.g. 2026-01-15T02:00:00Z)")
	fs.BoolVar(&o.list, "list", false, "List available tasks and exit")
	fs.BoolVar(&o.dryRun, "dry-run", false, "Run against the database with stub delivery transports")
	fs.BoolVar(&o.print, "print", false, "Print the JSON payload without executing")
	fs.BoolVar(&o.enqueue, "enqueue", false, "Publish the payload to the reminder task queue instead of running it")
	fs.BoolVar(&o.migrate, "migrate", false, "Apply database migrations and exit")
	if err := fs.Parse(args); err != nil {
		return o, err
	}

	if o.list || o.migrate {
		return o, nil
	}
	if *taskFlag == "" {
		fmt.Fprintln(stderr, "error: --task is required")
		return o, errUsage
	}
	task, err := scheduler.ParseTaskType(*taskFlag)
	if err != nil {
		return o, err
	}
	o.task = task

	if *refFlag != "" {
		t, err := time.Parse(time.RFC3339, *refFlag)
		if err != nil {
			return o, fmt.Errorf("invalid --reference-time %q: expected RFC3339: %w", *refFlag, err)
		}
		o.refTime = &t
	}
	if o.enqueue && o.dryRun {
		return o, fmt.Errorf("--enqueue and --dry-run are mutually exclusive")
	}
	return o, nil
}

func (o options) payload() scheduler.TaskPayload {
	return scheduler.TaskPayload{Task: o.task, ReferenceTime: o.refTime}
}

func printTasks(w io.Writer) {
	fmt.Fprintln(w, "Available tasks:")
	for _, t := range scheduler.AllTasks {
		fmt.Fprintf(w, "  %-20s %s\n", t, taskDescriptions[t])
	}
}

func printPayload(w io.Writer, p scheduler.TaskPayload) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}

func main() {
	o, err := parseArgs(os.Args[1:], os.Stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "error: %v\n\n", err)
			printTasks(os.Stderr)
		}
		os.Exit(2)
	}

	switch {
	case o.list:
		printTasks(os.Stdout)
		return
	case o.print:
		if err := printPayload(os.Stdout, o.payload()); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "no .env file loaded")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, o); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o options) error {
	cfg, err := config.LoadConfig(config.NewSecretProvider(os.Getenv("APP_ENV"), os.Getenv("AWS_REGION")))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logger := app.NewLogger(os.Stderr, cfg.LogLevel, false)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return fmt.Errorf("loading AWS config: %w", err)
	}
	if cfg.AWS.EndpointURL != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
	}

	if o.migrate {
		pool, err := db.NewPool(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := db.Migrate(ctx, pool); err != nil {
			return err
		}
		return db.MigrationStatus(ctx, pool)
	}

	if o.enqueue {
		msg := types.TaskMessage{
			Task:          string(o.task),
			ReferenceTime: o.refTime,
			RequestedBy:   "job-runner",
		}
		publisher := queue.NewTaskPublisher(sqs.NewFromConfig(awsCfg), cfg.AWS.ReminderTaskQueue, types.NewSlogAdapter(logger))
		id, err := publisher.Publish(ctx, msg, 0)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "enqueued %s as message %s\n", o.task, id)
		return nil
	}

	engine, err := app.New(ctx, cfg, awsCfg, app.Options{
		Logger:   logger,
		Stubs:    o.dryRun,
		WorkerID: "job-runner-" + uuid.NewString(),
	})
	if err != nil {
		return err
	}
	defer engine.Close()

	out, err := engine.Runner.Run(ctx, o.payload())
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
