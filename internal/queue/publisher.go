// Package queue publishes reminder task envelopes to SQS so a run can be
// triggered out of band by the reminder worker.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"carereminders/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// maxDelay is the SQS DelaySeconds ceiling.
const maxDelay = 900 * time.Second

// TaskPublisher sends TaskMessage envelopes to the reminder task queue.
type TaskPublisher struct {
	client   SQSSender
	queueURL string
	logger   types.Logger
}

// NewTaskPublisher creates a publisher targeting queueURL.
func NewTaskPublisher(client SQSSender, queueURL string, logger types.Logger) *TaskPublisher {
	return &TaskPublisher{
		client:   client,
		queueURL: queueURL,
		logger:   logger,
	}
}

// Publish validates the task name, fills a trace id when absent, and sends
// the envelope with the given delay (clamped to [0, 15m]). It returns the
// SQS message id.
func (p *TaskPublisher) Publish(ctx context.Context, msg types.TaskMessage, delay time.Duration) (string, error) {
	if p.queueURL == "" {
		return "", types.NewAppError(types.ErrCodeValidationMissingField, "reminder task queue URL is not configured", nil)
	}
	if !KnownTask(msg.Task) {
		return "", types.NewAppError(types.ErrCodeValidationMissingField,
			fmt.Sprintf("unknown task %q", msg.Task), nil)
	}
	if msg.TraceID == "" {
		msg.TraceID = types.GetRunID(ctx)
	}
	if msg.TraceID == "" {
		msg.TraceID = uuid.NewString()
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("task publisher: failed to marshal message: %w", err)
	}

	if delay > maxDelay {
		delay = maxDelay
	}
	if delay < 0 {
		delay = 0
	}
	delaySec := int32(delay / time.Second)

	out, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:     aws.String(p.queueURL),
		MessageBody:  aws.String(string(body)),
		DelaySeconds: delaySec,
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"task": {
				DataType:    aws.String("String"),
				StringValue: aws.String(msg.Task),
			},
		},
	})
	if err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("failed to send task to %s", p.queueURL), err)
	}

	messageID := aws.ToString(out.MessageId)
	p.logger.Info("reminder task enqueued",
		"task", msg.Task,
		"trace_id", msg.TraceID,
		"message_id", messageID,
		"delay_seconds", delaySec,
	)
	return messageID, nil
}

// KnownTask reports whether name is a task the reminder worker handles.
func KnownTask(name string) bool {
	switch name {
	case types.TaskScheduleReminders, types.TaskDispatchReminders:
		return true
	}
	return false
}

// DecodeTask parses an SQS message body into a TaskMessage.
func DecodeTask(body string) (types.TaskMessage, error) {
	var msg types.TaskMessage
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		return msg, fmt.Errorf("decode task message: %w", err)
	}
	if !KnownTask(msg.Task) {
		return msg, types.NewAppError(types.ErrCodeValidationMissingField,
			fmt.Sprintf("unknown task %q", msg.Task), nil)
	}
	return msg, nil
}
