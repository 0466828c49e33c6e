package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"carereminders/internal/scheduler"
	"carereminders/internal/types"
)

type mockRunner struct {
	payloads []scheduler.TaskPayload
	runIDs   []string
	failTask scheduler.TaskType
}

func (m *mockRunner) Run(ctx context.Context, p scheduler.TaskPayload) (scheduler.RunOutcome, error) {
	m.payloads = append(m.payloads, p)
	m.runIDs = append(m.runIDs, types.GetRunID(ctx))
	if p.Task == m.failTask {
		return scheduler.RunOutcome{}, errors.New("store unavailable")
	}
	return scheduler.RunOutcome{Task: p.Task, Items: 2}, nil
}

func newHandler(r *mockRunner) *Handler {
	return &Handler{Runner: r, Logger: slog.New(slog.DiscardHandler)}
}

func TestHandle_DirectPayload(t *testing.T) {
	r := &mockRunner{}
	out, err := newHandler(r).Handle(context.Background(),
		json.RawMessage(`{"task":"dispatch_reminders","reference_time":"2026-02-06T03:00:00Z"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.payloads) != 1 || r.payloads[0].Task != scheduler.TaskDispatchReminders {
		t.Fatalf("payloads = %+v", r.payloads)
	}
	if r.payloads[0].ReferenceTime == nil || r.payloads[0].ReferenceTime.Hour() != 3 {
		t.Errorf("reference time = %v", r.payloads[0].ReferenceTime)
	}
	if res, ok := out.(scheduler.RunOutcome); !ok || res.Items != 2 {
		t.Errorf("output = %#v", out)
	}
}

func TestHandle_DirectPayloadErrors(t *testing.T) {
	r := &mockRunner{failTask: scheduler.TaskScheduleReminders}
	h := newHandler(r)

	for name, raw := range map[string]string{
		"malformed":  `{"task":`,
		"empty task": `{}`,
		"run failed": `{"task":"schedule_reminders"}`,
	} {
		if _, err := h.Handle(context.Background(), json.RawMessage(raw)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestHandle_SQSEvent(t *testing.T) {
	r := &mockRunner{failTask: scheduler.TaskScheduleReminders}
	ev := events.SQSEvent{Records: []events.SQSMessage{
		{MessageId: "m1", Body: `{"task":"dispatch_reminders","trace_id":"trace-1"}`},
		{MessageId: "m2", Body: `not json`},
		{MessageId: "m3", Body: `{"task":"schedule_reminders"}`},
		{MessageId: "m4", Body: `{"task":"unknown_task"}`},
	}}
	raw, _ := json.Marshal(ev)

	out, err := newHandler(r).Handle(context.Background(), raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp, ok := out.(events.SQSEventResponse)
	if !ok {
		t.Fatalf("output type = %T", out)
	}
	if len(resp.BatchItemFailures) != 1 || resp.BatchItemFailures[0].ItemIdentifier != "m3" {
		t.Errorf("failures = %+v, want only m3", resp.BatchItemFailures)
	}
	if len(r.payloads) != 2 {
		t.Fatalf("runs = %d, want 2 (malformed and unknown messages are dropped)", len(r.payloads))
	}
	if r.runIDs[0] != "trace-1" {
		t.Errorf("run id = %q, want trace id carried over", r.runIDs[0])
	}
}
