package email

import (
	"context"
	"strings"

	"carereminders/internal/external"
	"carereminders/internal/types"
)

// Sender implements types.ChannelSender for EMAIL reminders.
type Sender struct {
	transport   external.EmailTransport
	fromName    string
	fromAddress string
	logger      types.Logger
}

// SenderConfig holds the dependencies needed to create a Sender.
type SenderConfig struct {
	Transport   external.EmailTransport
	FromName    string
	FromAddress string
	Logger      types.Logger
}

// NewSender creates an email Sender.
func NewSender(cfg SenderConfig) *Sender {
	return &Sender{
		transport:   cfg.Transport,
		fromName:    cfg.FromName,
		fromAddress: cfg.FromAddress,
		logger:      cfg.Logger,
	}
}

// Method returns types.MethodEmail.
func (s *Sender) Method() types.NotificationMethod {
	return types.MethodEmail
}

// Deliver sends msg to the recipient's email address.
//
//  1. No address: failure outcome, transport not called
//  2. Provider blocklist rejection: failure outcome, no error
//  3. Other provider errors: returned
func (s *Sender) Deliver(ctx context.Context, recipient *types.Recipient, msg types.ReminderMessage) (types.DeliveryOutcome, error) {
	to := ""
	if recipient != nil {
		to = strings.TrimSpace(recipient.Email)
	}
	if to == "" {
		return types.DeliveryOutcome{Reason: "recipient has no email address"}, nil
	}

	s.logger.Info("attempting email delivery", "dest", RedactEmail(to), "job_id", msg.JobID)

	msgID, err := s.transport.SendEmail(ctx, external.EmailMessage{
		To:          to,
		FromName:    s.fromName,
		FromAddress: s.fromAddress,
		Subject:     msg.Subject,
		BodyHTML:    msg.HTML,
		BodyText:    msg.Body,
		ReferenceID: msg.JobID,
	})
	if err != nil {
		if IsBlocklistError(err) {
			s.logger.Warn("recipient blocked by provider", "dest", RedactEmail(to), "job_id", msg.JobID)
			return types.DeliveryOutcome{Reason: "address_blocked"}, nil
		}
		return types.DeliveryOutcome{}, err
	}

	return types.DeliveryOutcome{Success: true, ProviderID: msgID}, nil
}

var _ types.ChannelSender = (*Sender)(nil)
