package external

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"carereminders/internal/types"
)

// Stub transports log the call and report success. They let the worker
// boot locally without credentials.

// StubEmailTransport implements EmailTransport.
type StubEmailTransport struct {
	logger *slog.Logger
}

func NewStubEmailTransport(logger *slog.Logger) *StubEmailTransport {
	return &StubEmailTransport{logger: logger}
}

func (s *StubEmailTransport) SendEmail(ctx context.Context, msg EmailMessage) (string, error) {
	s.logger.InfoContext(ctx, "stub: SendEmail called",
		"to", msg.To,
		"subject", msg.Subject,
		"reference_id", msg.ReferenceID,
	)
	return fmt.Sprintf("msg_stub_%s", msg.ReferenceID), nil
}

// StubSMSTransport implements SMSTransport.
type StubSMSTransport struct {
	logger *slog.Logger
	seq    atomic.Int64
}

func NewStubSMSTransport(logger *slog.Logger) *StubSMSTransport {
	return &StubSMSTransport{logger: logger}
}

func (s *StubSMSTransport) SendSMS(ctx context.Context, phoneNumber, message string) (string, error) {
	s.logger.InfoContext(ctx, "stub: SendSMS called",
		"phone", phoneNumber,
		"length", len(message),
	)
	return fmt.Sprintf("sms_stub_%d", s.seq.Add(1)), nil
}

// StubPushTransport implements PushTransport.
type StubPushTransport struct {
	logger *slog.Logger
}

func NewStubPushTransport(logger *slog.Logger) *StubPushTransport {
	return &StubPushTransport{logger: logger}
}

func (s *StubPushTransport) SendPush(ctx context.Context, sub types.PushSubscription, payload []byte) error {
	s.logger.InfoContext(ctx, "stub: SendPush called",
		"subscription_id", sub.ID,
		"payload_bytes", len(payload),
	)
	return nil
}

var _ EmailTransport = (*StubEmailTransport)(nil)
var _ SMSTransport = (*StubSMSTransport)(nil)
var _ PushTransport = (*StubPushTransport)(nil)
