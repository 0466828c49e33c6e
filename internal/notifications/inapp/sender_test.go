package inapp

import (
	"context"
	"errors"
	"testing"

	"carereminders/internal/types"
)

type mockStore struct {
	created *types.InAppNotification
	err     error
}

func (m *mockStore) Create(ctx context.Context, n *types.InAppNotification) (string, error) {
	m.created = n
	if m.err != nil {
		return "", m.err
	}
	return "inapp-1", nil
}

var msg = types.ReminderMessage{
	JobID:   "job-1",
	Subject: "Reminder: Consultation",
	Body:    `Your appointment "Consultation" starts in 1 hour.`,
	Payload: types.ReminderPayload{AppointmentID: "appt-123", MinutesBefore: 60},
}

func TestSenderDeliver_Success(t *testing.T) {
	store := &mockStore{}
	s := NewSender(store)

	out, err := s.Deliver(context.Background(), &types.Recipient{ID: "user-1"}, msg)
	if err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if !out.Success || out.ProviderID != "inapp-1" {
		t.Errorf("outcome = %+v", out)
	}
	if store.created.UserID != "user-1" || store.created.Title != msg.Subject || store.created.Message != msg.Body {
		t.Errorf("created = %+v", store.created)
	}
	if store.created.Data["appointmentId"] != "appt-123" {
		t.Errorf("data = %v", store.created.Data)
	}
	if s.Method() != types.MethodInApp {
		t.Errorf("Method() = %s", s.Method())
	}
}

func TestSenderDeliver_StoreError(t *testing.T) {
	boom := errors.New("insert failed")
	out, err := NewSender(&mockStore{err: boom}).Deliver(context.Background(), &types.Recipient{ID: "user-1"}, msg)
	if !errors.Is(err, boom) || out.Success {
		t.Errorf("got (%+v, %v)", out, err)
	}
}

func TestSenderDeliver_NoRecipient(t *testing.T) {
	store := &mockStore{}
	out, err := NewSender(store).Deliver(context.Background(), nil, msg)
	if err != nil || out.Success {
		t.Errorf("got (%+v, %v)", out, err)
	}
	if store.created != nil {
		t.Error("store must not be called")
	}
}
