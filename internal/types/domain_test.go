package types

import (
	"reflect"
	"testing"
	"time"
)

func TestAppointment_RecipientIDs(t *testing.T) {
	a := Appointment{
		CreatedByID:    "creator",
		ParticipantIDs: []string{"p1", "creator", "", "p2", "p1"},
	}
	want := []string{"creator", "p1", "p2"}
	if got := a.RecipientIDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("RecipientIDs() = %v, want %v", got, want)
	}
}

func TestAppointment_RecipientIDs_NoParticipants(t *testing.T) {
	a := Appointment{CreatedByID: "creator"}
	if got := a.RecipientIDs(); !reflect.DeepEqual(got, []string{"creator"}) {
		t.Errorf("RecipientIDs() = %v", got)
	}
}

func TestScheduledNotification_Key(t *testing.T) {
	n := ScheduledNotification{
		UserID: "u1",
		Method: MethodSMS,
		Payload: ReminderPayload{
			AppointmentID: "appt-1",
			MinutesBefore: 15,
			Method:        MethodSMS,
		},
	}
	want := DedupKey{UserID: "u1", AppointmentID: "appt-1", Method: MethodSMS, MinutesBefore: 15}
	if n.Key() != want {
		t.Errorf("Key() = %+v, want %+v", n.Key(), want)
	}
}

func TestJobStatus_IsTerminal(t *testing.T) {
	tests := map[JobStatus]bool{
		JobStatusPending:   false,
		JobStatusSent:      true,
		JobStatusFailed:    true,
		JobStatusCancelled: true,
	}
	for s, want := range tests {
		if got := s.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", s, got, want)
		}
	}
}

func TestNotificationMethod_Valid(t *testing.T) {
	for _, m := range AllMethods {
		if !m.Valid() {
			t.Errorf("%s should be valid", m)
		}
	}
	if NotificationMethod("FAX").Valid() {
		t.Error("FAX should not be valid")
	}
}

func TestFixedClock(t *testing.T) {
	loc := time.FixedZone("X", 3600)
	pinned := time.Date(2026, 1, 1, 10, 0, 0, 0, loc)
	c := FixedClock(pinned)
	if got := c.Now(); !got.Equal(pinned) || got.Location() != time.UTC {
		t.Errorf("Now() = %v, want %v in UTC", got, pinned)
	}
}

func TestEffectivePreference_HasChannel(t *testing.T) {
	p := EffectivePreference{Channels: []NotificationMethod{MethodEmail, MethodPush}}
	if !p.HasChannel(MethodPush) || p.HasChannel(MethodSMS) {
		t.Errorf("HasChannel mismatch for %v", p.Channels)
	}
}
