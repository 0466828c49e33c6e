// Package sms delivers appointment reminders as text messages through an
// external.SMSTransport (AWS SNS in production).
package sms

import (
	"context"
	"strings"

	"carereminders/internal/external"
	"carereminders/internal/types"
)

// Sender implements types.ChannelSender for SMS reminders.
type Sender struct {
	transport external.SMSTransport
	logger    types.Logger
}

func NewSender(transport external.SMSTransport, logger types.Logger) *Sender {
	return &Sender{transport: transport, logger: logger}
}

func (s *Sender) Method() types.NotificationMethod {
	return types.MethodSMS
}

// Deliver texts msg.Body to the recipient's phone. A recipient without a
// phone number is a failure outcome and the transport is not called.
func (s *Sender) Deliver(ctx context.Context, recipient *types.Recipient, msg types.ReminderMessage) (types.DeliveryOutcome, error) {
	phone := ""
	if recipient != nil {
		phone = strings.TrimSpace(recipient.Phone)
	}
	if phone == "" {
		return types.DeliveryOutcome{Reason: "recipient has no phone number"}, nil
	}

	s.logger.Info("attempting sms delivery", "dest", RedactPhone(phone), "job_id", msg.JobID)

	msgID, err := s.transport.SendSMS(ctx, phone, msg.Body)
	if err != nil {
		return types.DeliveryOutcome{}, err
	}
	return types.DeliveryOutcome{Success: true, ProviderID: msgID}, nil
}

// RedactPhone keeps the last two digits: "+15551234567" becomes "***67".
func RedactPhone(phone string) string {
	if len(phone) <= 2 {
		return "***"
	}
	return "***" + phone[len(phone)-2:]
}

var _ types.ChannelSender = (*Sender)(nil)
