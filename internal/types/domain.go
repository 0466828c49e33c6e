package types

import (
	"encoding/json"
	"time"
)

// Appointment is a scheduled event read by the reminder scheduler. The
// scheduler never mutates appointments.
type Appointment struct {
	ID             string            `json:"id" db:"id"`
	Title          string            `json:"title" db:"title"`
	StartTime      time.Time         `json:"start_time" db:"start_time"`
	Status         AppointmentStatus `json:"status" db:"status"`
	CreatedByID    string            `json:"created_by_id" db:"created_by_id"`
	ParticipantIDs []string          `json:"participant_ids"`

	// OrganizationID and OrganizationPreferences come from the operator
	// organization the creator belongs to. Both are empty when the creator
	// has no operator affiliation.
	OrganizationID          string          `json:"organization_id,omitempty" db:"organization_id"`
	OrganizationPreferences json.RawMessage `json:"organization_preferences,omitempty" db:"organization_preferences"`
}

// RecipientIDs returns the creator followed by all participants with
// duplicates and blanks removed.
func (a *Appointment) RecipientIDs() []string {
	seen := make(map[string]struct{}, len(a.ParticipantIDs)+1)
	ids := make([]string, 0, len(a.ParticipantIDs)+1)
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	add(a.CreatedByID)
	for _, id := range a.ParticipantIDs {
		add(id)
	}
	return ids
}

// Recipient is a user who may receive reminders.
type Recipient struct {
	ID          string          `json:"id" db:"id"`
	Email       string          `json:"email" db:"email"`
	Phone       string          `json:"phone" db:"phone"`
	FirstName   string          `json:"first_name" db:"first_name"`
	LastName    string          `json:"last_name" db:"last_name"`
	Timezone    string          `json:"timezone" db:"timezone"`
	Preferences json.RawMessage `json:"preferences,omitempty" db:"preferences"`
}

// DefaultTimezone is stored in reminder payloads when the recipient has none.
const DefaultTimezone = "UTC"

// ReminderPayload is the snapshot captured when a job is created. Later edits
// to the appointment do not change an already scheduled reminder.
type ReminderPayload struct {
	AppointmentID string             `json:"appointmentId"`
	Title         string             `json:"title"`
	StartTime     string             `json:"startTime"` // RFC 3339, UTC
	MinutesBefore int                `json:"minutesBefore"`
	Method        NotificationMethod `json:"method"`
	Timezone      string             `json:"timezone"`
}

// ScheduledNotification is a durable reminder job.
type ScheduledNotification struct {
	ID            string             `json:"id" db:"id"`
	UserID        string             `json:"user_id" db:"user_id"`
	Type          NotificationType   `json:"type" db:"type"`
	Method        NotificationMethod `json:"method" db:"method"`
	Status        JobStatus          `json:"status" db:"status"`
	ScheduledFor  time.Time          `json:"scheduled_for" db:"scheduled_for"`
	Payload       ReminderPayload    `json:"payload" db:"payload"`
	FailureReason string             `json:"failure_reason,omitempty" db:"failure_reason"`
	SentAt        *time.Time         `json:"sent_at,omitempty" db:"sent_at"`
	CreatedAt     time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at" db:"updated_at"`
}

// DedupKey identifies the (recipient, appointment, channel, offset) tuple.
// At most one non-cancelled job may exist per key.
type DedupKey struct {
	UserID        string
	AppointmentID string
	Method        NotificationMethod
	MinutesBefore int
}

// Key returns the job's dedup key derived from its payload snapshot.
func (n *ScheduledNotification) Key() DedupKey {
	return DedupKey{
		UserID:        n.UserID,
		AppointmentID: n.Payload.AppointmentID,
		Method:        n.Method,
		MinutesBefore: n.Payload.MinutesBefore,
	}
}

// EffectivePreference is the resolved reminder configuration for a recipient.
// Channels are in AllMethods order; Offsets are ascending and unique.
type EffectivePreference struct {
	Channels []NotificationMethod
	Offsets  []int
}

// HasChannel reports whether m is enabled.
func (p EffectivePreference) HasChannel(m NotificationMethod) bool {
	for _, c := range p.Channels {
		if c == m {
			return true
		}
	}
	return false
}

// PushSubscription is a registered web-push endpoint for a user.
type PushSubscription struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Endpoint  string    `db:"endpoint"`
	P256dhKey string    `db:"p256dh_key"`
	AuthKey   string    `db:"auth_key"`
	CreatedAt time.Time `db:"created_at"`
}

// InAppNotification is a message surfaced in the application inbox.
type InAppNotification struct {
	ID        string         `json:"id" db:"id"`
	UserID    string         `json:"user_id" db:"user_id"`
	Title     string         `json:"title" db:"title"`
	Message   string         `json:"message" db:"message"`
	Data      map[string]any `json:"data,omitempty" db:"data"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}
