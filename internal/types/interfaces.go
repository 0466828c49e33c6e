package types

import (
	"context"
	"time"
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// FixedClock is a Clock pinned to a single instant. Used by the job runner
// when --reference-time is supplied and by tests.
type FixedClock time.Time

// Now returns the pinned instant in UTC.
func (c FixedClock) Now() time.Time { return time.Time(c).UTC() }

// Logger defines the structured logging interface used throughout the module.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	With(args ...any) Logger
}

// RecipientLookup resolves a user into contact details and stored
// preferences. A missing user is reported as an AppError with
// ErrCodeNotFoundUser.
type RecipientLookup interface {
	GetByID(ctx context.Context, userID string) (*Recipient, error)
}

// DeliveryOutcome is the result of one channel delivery attempt.
type DeliveryOutcome struct {
	Success bool
	// ProviderID is the provider message ID, or the created row ID for
	// in-app notifications.
	ProviderID string
	// Sent and Errors count per-subscription results for push.
	Sent   int
	Errors int
	// Reason explains a non-success outcome.
	Reason string
}

// ChannelSender delivers one reminder over one channel.
//
// A non-success outcome with a nil error means the recipient could not be
// reached (no address, no subscription, blocked). A non-nil error is a
// provider or store failure. Both mark the job FAILED.
type ChannelSender interface {
	Method() NotificationMethod
	Deliver(ctx context.Context, recipient *Recipient, msg ReminderMessage) (DeliveryOutcome, error)
}

// ReminderMessage is the rendered, channel-agnostic reminder content.
type ReminderMessage struct {
	JobID   string
	Payload ReminderPayload
	Subject string
	Body    string
	HTML    string
}
