package email

import (
	"context"
	"errors"
	"testing"

	"carereminders/internal/external"
	"carereminders/internal/types"
)

type testLogger struct {
	infos, warns, errors []string
}

func newTestLogger() *testLogger { return &testLogger{} }

func (l *testLogger) Info(msg string, args ...any)  { l.infos = append(l.infos, msg) }
func (l *testLogger) Warn(msg string, args ...any)  { l.warns = append(l.warns, msg) }
func (l *testLogger) Error(msg string, args ...any) { l.errors = append(l.errors, msg) }
func (l *testLogger) With(args ...any) types.Logger { return l }

// mockTransport implements external.EmailTransport for testing.
type mockTransport struct {
	calls int
	input external.EmailMessage
	msgID string
	err   error
}

func (m *mockTransport) SendEmail(ctx context.Context, msg external.EmailMessage) (string, error) {
	m.calls++
	m.input = msg
	return m.msgID, m.err
}

func testMessage() types.ReminderMessage {
	return types.ReminderMessage{
		JobID:   "job-1",
		Subject: "Reminder: Consultation",
		Body:    `Your appointment "Consultation" starts in 1 hour.`,
		HTML:    `<p>Your appointment &#34;Consultation&#34; starts in 1 hour.</p>`,
		Payload: types.ReminderPayload{AppointmentID: "appt-123", MinutesBefore: 60, Method: types.MethodEmail},
	}
}

func newTestSender(tr *mockTransport) *Sender {
	return NewSender(SenderConfig{
		Transport:   tr,
		FromName:    "Appointment Reminders",
		FromAddress: "reminders@example.com",
		Logger:      newTestLogger(),
	})
}

func TestSenderMethod(t *testing.T) {
	if got := newTestSender(&mockTransport{}).Method(); got != types.MethodEmail {
		t.Errorf("Method() = %s", got)
	}
}

func TestSenderDeliver_Success(t *testing.T) {
	tr := &mockTransport{msgID: "ses-1"}
	s := newTestSender(tr)

	out, err := s.Deliver(context.Background(), &types.Recipient{ID: "user-1", Email: " ada@example.com "}, testMessage())
	if err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if !out.Success || out.ProviderID != "ses-1" {
		t.Errorf("outcome = %+v", out)
	}

	in := tr.input
	if in.To != "ada@example.com" {
		t.Errorf("To = %q", in.To)
	}
	if in.FromAddress != "reminders@example.com" || in.FromName != "Appointment Reminders" {
		t.Errorf("from = %q <%q>", in.FromName, in.FromAddress)
	}
	if in.Subject != "Reminder: Consultation" || in.BodyText == "" || in.BodyHTML == "" {
		t.Errorf("content = %+v", in)
	}
	if in.ReferenceID != "job-1" {
		t.Errorf("ReferenceID = %q", in.ReferenceID)
	}
}

func TestSenderDeliver_MissingAddress(t *testing.T) {
	for name, rec := range map[string]*types.Recipient{
		"nil recipient": nil,
		"empty email":   {ID: "user-1"},
		"blank email":   {ID: "user-1", Email: "   "},
	} {
		t.Run(name, func(t *testing.T) {
			tr := &mockTransport{}
			out, err := newTestSender(tr).Deliver(context.Background(), rec, testMessage())
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if out.Success {
				t.Error("expected failure outcome")
			}
			if out.Reason == "" {
				t.Error("expected a reason")
			}
			if tr.calls != 0 {
				t.Errorf("transport called %d times", tr.calls)
			}
		})
	}
}

func TestSenderDeliver_Blocked(t *testing.T) {
	tr := &mockTransport{err: types.NewAppError(types.ErrCodeEmailBlocked, "rejected", nil)}

	out, err := newTestSender(tr).Deliver(context.Background(), &types.Recipient{Email: "ada@example.com"}, testMessage())
	if err != nil {
		t.Fatalf("expected blocklist to be an outcome, got error %v", err)
	}
	if out.Success || out.Reason != "address_blocked" {
		t.Errorf("outcome = %+v", out)
	}
}

func TestSenderDeliver_ProviderError(t *testing.T) {
	providerErr := types.NewAppError(types.ErrCodeUpstreamRateLimited, "slow down", nil)
	tr := &mockTransport{err: providerErr}

	out, err := newTestSender(tr).Deliver(context.Background(), &types.Recipient{Email: "ada@example.com"}, testMessage())
	if !errors.Is(err, providerErr) {
		t.Errorf("error = %v, want provider error", err)
	}
	if out.Success {
		t.Error("expected failure outcome")
	}
}
