package types

import "time"

// TaskMessage is the SQS envelope used to trigger a reminder task out of band
// (for example from the job runner with --enqueue). JSON tags use snake_case.
type TaskMessage struct {
	Task          string     `json:"task"`
	ReferenceTime *time.Time `json:"reference_time,omitempty"`
	RequestedBy   string     `json:"requested_by,omitempty"`
	TraceID       string     `json:"trace_id,omitempty"`
}

// Task names accepted by the reminder worker.
const (
	TaskScheduleReminders = "schedule_reminders"
	TaskDispatchReminders = "dispatch_reminders"
)
