package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"carereminders/internal/scheduler"
)

func TestParseArgs(t *testing.T) {
	var stderr bytes.Buffer
	o, err := parseArgs([]string{"--task=dispatch_reminders", "--reference-time=2026-01-15T02:00:00Z", "--dry-run"}, &stderr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.task != scheduler.TaskDispatchReminders || !o.dryRun {
		t.Errorf("options = %+v", o)
	}
	if o.refTime == nil || !o.refTime.Equal(time.Date(2026, 1, 15, 2, 0, 0, 0, time.UTC)) {
		t.Errorf("reference time = %v", o.refTime)
	}
}

func TestParseArgs_Errors(t *testing.T) {
	cases := map[string][]string{
		"missing task":        {},
		"unknown task":        {"--task=send_newsletter"},
		"bad reference time":  {"--task=schedule_reminders", "--reference-time=yesterday"},
		"enqueue and dry run": {"--task=schedule_reminders", "--enqueue", "--dry-run"},
	}
	for name, args := range cases {
		var stderr bytes.Buffer
		if _, err := parseArgs(args, &stderr); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestParseArgs_ListAndMigrateNeedNoTask(t *testing.T) {
	for _, flagName := range []string{"--list", "--migrate"} {
		var stderr bytes.Buffer
		if _, err := parseArgs([]string{flagName}, &stderr); err != nil {
			t.Errorf("%s: unexpected error %v", flagName, err)
		}
	}
}

func TestPrintPayload(t *testing.T) {
	ref := time.Date(2026, 1, 15, 2, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	if err := printPayload(&buf, scheduler.TaskPayload{Task: scheduler.TaskScheduleReminders, ReferenceTime: &ref}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got map[string]string
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got["task"] != "schedule_reminders" || got["reference_time"] != "2026-01-15T02:00:00Z" {
		t.Errorf("payload = %v", got)
	}
}

func TestPrintTasks(t *testing.T) {
	var buf bytes.Buffer
	printTasks(&buf)
	for _, task := range scheduler.AllTasks {
		if !strings.Contains(buf.String(), string(task)) {
			t.Errorf("task list missing %s", task)
		}
	}
}
