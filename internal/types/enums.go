package types

// AppointmentStatus represents the lifecycle state of an appointment.
type AppointmentStatus string

const (
	AppointmentPending     AppointmentStatus = "PENDING"
	AppointmentConfirmed   AppointmentStatus = "CONFIRMED"
	AppointmentCancelled   AppointmentStatus = "CANCELLED"
	AppointmentCompleted   AppointmentStatus = "COMPLETED"
	AppointmentNoShow      AppointmentStatus = "NO_SHOW"
	AppointmentRescheduled AppointmentStatus = "RESCHEDULED"
)

// ReminderEligibleStatuses lists the appointment statuses for which reminders
// are scheduled. Everything else is terminal or not yet agreed.
var ReminderEligibleStatuses = []AppointmentStatus{AppointmentConfirmed}

// NotificationMethod identifies a reminder delivery channel.
type NotificationMethod string

const (
	MethodEmail NotificationMethod = "EMAIL"
	MethodSMS   NotificationMethod = "SMS"
	MethodPush  NotificationMethod = "PUSH"
	MethodInApp NotificationMethod = "IN_APP"
)

// AllMethods is the canonical channel ordering. Effective preferences and
// scheduling loops iterate channels in this order so output is deterministic.
var AllMethods = []NotificationMethod{MethodEmail, MethodSMS, MethodPush, MethodInApp}

// Valid reports whether m is one of the known channels.
func (m NotificationMethod) Valid() bool {
	switch m {
	case MethodEmail, MethodSMS, MethodPush, MethodInApp:
		return true
	}
	return false
}

// NotificationType identifies the kind of scheduled notification.
type NotificationType string

const (
	NotificationAppointmentReminder NotificationType = "APPOINTMENT_REMINDER"
)

// JobStatus is the lifecycle state of a ScheduledNotification.
//
//	PENDING --(dispatch success)--> SENT
//	PENDING --(dispatch failure)--> FAILED
//
// CANCELLED is never written by this subsystem; rows in that state are
// treated as superseded and ignored by deduplication.
type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusSent      JobStatus = "SENT"
	JobStatusFailed    JobStatus = "FAILED"
	JobStatusCancelled JobStatus = "CANCELLED"
)

// IsTerminal reports whether the status can no longer change.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusSent || s == JobStatusFailed || s == JobStatusCancelled
}
