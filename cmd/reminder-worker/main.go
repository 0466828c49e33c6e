// Package main is the entrypoint for the Reminder Worker Lambda function.
//
// The worker is a task multiplexer. EventBridge rules invoke it directly
// with a task payload, and the reminder task queue delivers TaskMessage
// envelopes through an SQS event source mapping:
//
//	{"task": "schedule_reminders"}
//	{"task": "dispatch_reminders", "reference_time": "2026-02-06T03:00:00Z"}
//
// Either way the payload is handed to the TaskRunner, which takes the task
// lock, records job history and runs the phase under the run deadline.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"

	"carereminders/internal/app"
	"carereminders/internal/config"
	"carereminders/internal/notifications/core"
	"carereminders/internal/queue"
	"carereminders/internal/scheduler"
	"carereminders/internal/types"
)

// TaskRunner runs one reminder task.
type TaskRunner interface {
	Run(ctx context.Context, payload scheduler.TaskPayload) (scheduler.RunOutcome, error)
}

// Handler holds the dependencies for the worker Lambda handler.
type Handler struct {
	Runner TaskRunner
	Logger *slog.Logger
}

// Handle accepts either an SQS event or a direct task payload.
func (h *Handler) Handle(ctx context.Context, raw json.RawMessage) (any, error) {
	var probe struct {
		Records []json.RawMessage `json:"Records"`
	}
	if err := json.Unmarshal(raw, &probe); err == nil && len(probe.Records) > 0 {
		var ev events.SQSEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("decoding SQS event: %w", err)
		}
		return h.HandleSQS(ctx, ev), nil
	}

	var payload scheduler.TaskPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decoding task payload: %w", err)
	}
	if payload.Task == "" {
		return nil, fmt.Errorf("empty task in payload")
	}
	return h.Runner.Run(ctx, payload)
}

// HandleSQS runs each queued task. Malformed messages are acknowledged so
// they do not loop; failed runs are reported as batch item failures and
// retried by SQS.
func (h *Handler) HandleSQS(ctx context.Context, ev events.SQSEvent) events.SQSEventResponse {
	resp := events.SQSEventResponse{}
	for _, record := range ev.Records {
		msg, err := queue.DecodeTask(record.Body)
		if err != nil {
			h.logger().ErrorContext(ctx, "discarding malformed task message",
				"message_id", record.MessageId,
				"error", err,
			)
			continue
		}

		runCtx := ctx
		if msg.TraceID != "" {
			runCtx = types.WithRunID(ctx, msg.TraceID)
		}
		out, err := h.Runner.Run(runCtx, scheduler.PayloadFromMessage(msg))
		if err != nil {
			h.logger().ErrorContext(ctx, "queued task failed",
				"message_id", record.MessageId,
				"task", msg.Task,
				"error", err,
			)
			resp.BatchItemFailures = append(resp.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
			continue
		}
		h.logger().InfoContext(ctx, "queued task complete",
			"message_id", record.MessageId,
			"task", msg.Task,
			"requested_by", msg.RequestedBy,
			"skipped", out.Skipped,
			"items", out.Items,
		)
	}
	return resp
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	cfg, err := config.LoadConfig(config.NewSecretProvider(os.Getenv("APP_ENV"), os.Getenv("AWS_REGION")))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := app.NewLogger(os.Stdout, cfg.LogLevel, true)
	logger.Info("reminder worker initializing (cold start)",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
	)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return fmt.Errorf("loading AWS config: %w", err)
	}
	if cfg.AWS.EndpointURL != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
	}

	metrics := core.NewCloudWatchNotificationMetrics(
		cloudwatch.NewFromConfig(awsCfg),
		cfg.Observability.MetricNamespace,
		types.NewSlogAdapter(logger),
	)

	engine, err := app.New(ctx, cfg, awsCfg, app.Options{Logger: logger, Metrics: metrics})
	if err != nil {
		return err
	}
	defer engine.Close()

	handler := &Handler{Runner: engine.Runner, Logger: logger}

	// Local mode: read a single event from stdin instead of starting the
	// Lambda runtime.
	//
	//	echo '{"task":"dispatch_reminders"}' | go run ./cmd/reminder-worker
	if cfg.Environment == "local" {
		logger.Info("APP_ENV=local: reading event from stdin")
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		out, err := handler.Handle(ctx, raw)
		if err != nil {
			return err
		}
		return json.NewEncoder(os.Stdout).Encode(out)
	}

	lambda.Start(handler.Handle)
	return nil
}
