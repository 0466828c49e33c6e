// Package scheduler materializes reminder jobs for upcoming appointments and
// runs reminder tasks under a distributed lock with history tracking.
//
// Two tasks exist. schedule_reminders scans the upcoming window and creates
// PENDING jobs; dispatch_reminders drains due jobs through the dispatcher.
// They never call each other and may be triggered at any cadence.
package scheduler

import (
	"fmt"
	"time"

	"carereminders/internal/types"
)

// TaskType identifies which reminder phase a trigger runs.
type TaskType string

const (
	TaskScheduleReminders TaskType = types.TaskScheduleReminders
	TaskDispatchReminders TaskType = types.TaskDispatchReminders
)

// AllTasks lists the tasks in the order the job runner prints them.
var AllTasks = []TaskType{TaskScheduleReminders, TaskDispatchReminders}

// ParseTaskType validates a task name.
func ParseTaskType(s string) (TaskType, error) {
	for _, t := range AllTasks {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown task %q", s)
}

// TaskPayload is the JSON event a trigger (EventBridge rule, SQS message,
// cron tick) delivers to the task runner:
//
//	{"task": "dispatch_reminders", "reference_time": "2026-02-06T03:00:00Z"}
//
// ReferenceTime pins "now" for manual backfills; nil means the wall clock.
type TaskPayload struct {
	Task          TaskType   `json:"task"`
	ReferenceTime *time.Time `json:"reference_time,omitempty"`
}

// PayloadFromMessage converts a queued TaskMessage into a TaskPayload.
func PayloadFromMessage(msg types.TaskMessage) TaskPayload {
	return TaskPayload{Task: TaskType(msg.Task), ReferenceTime: msg.ReferenceTime}
}

// ScheduleResult summarizes one ScheduleUpcomingAppointmentReminders run.
type ScheduleResult struct {
	// Scanned is the number of appointments examined.
	Scanned int `json:"scanned"`
	// Scheduled is the number of new PENDING jobs created.
	Scheduled int `json:"scheduled"`
	// SkippedExisting counts (recipient, channel, offset) tuples that already
	// had a non-cancelled job.
	SkippedExisting int `json:"skipped_existing"`
	// SkippedUnreachable counts offsets whose fire time was not in the future.
	SkippedUnreachable int `json:"skipped_unreachable"`
	// Failed counts recipients or jobs that could not be processed.
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}
