package external

import (
	"context"
	"errors"

	"carereminders/internal/types"
)

// ---------------------------------------------------------------------------
// Email (AWS SES v2)
// ---------------------------------------------------------------------------

// EmailMessage is pre-rendered email content.
type EmailMessage struct {
	To          string
	FromName    string
	FromAddress string
	Subject     string
	BodyHTML    string
	BodyText    string
	// ReferenceID is attached as a message tag for correlation with
	// delivery events. Reminder jobs use the scheduled notification ID.
	ReferenceID string
}

// EmailTransport sends a single email and returns the provider message ID.
type EmailTransport interface {
	SendEmail(ctx context.Context, msg EmailMessage) (providerMsgID string, err error)
}

// ---------------------------------------------------------------------------
// SMS (AWS SNS)
// ---------------------------------------------------------------------------

// SMSTransport publishes a text message directly to a phone number.
type SMSTransport interface {
	SendSMS(ctx context.Context, phoneNumber, message string) (providerMsgID string, err error)
}

// ---------------------------------------------------------------------------
// Web push (VAPID)
// ---------------------------------------------------------------------------

// ErrSubscriptionExpired is returned when the push service reports the
// subscription is gone (HTTP 404 or 410). Callers should delete it.
var ErrSubscriptionExpired = errors.New("push subscription expired")

// PushTransport delivers an encrypted payload to one subscription.
type PushTransport interface {
	SendPush(ctx context.Context, sub types.PushSubscription, payload []byte) error
}
