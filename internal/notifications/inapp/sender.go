// Package inapp delivers appointment reminders to the in-application inbox.
package inapp

import (
	"context"
	"fmt"

	"carereminders/internal/types"
)

// NotificationStore persists in-app notifications.
type NotificationStore interface {
	Create(ctx context.Context, n *types.InAppNotification) (string, error)
}

// Sender implements types.ChannelSender for IN_APP reminders.
type Sender struct {
	store NotificationStore
}

func NewSender(store NotificationStore) *Sender {
	return &Sender{store: store}
}

func (s *Sender) Method() types.NotificationMethod {
	return types.MethodInApp
}

// Deliver writes one inbox row for the recipient and returns its ID.
func (s *Sender) Deliver(ctx context.Context, recipient *types.Recipient, msg types.ReminderMessage) (types.DeliveryOutcome, error) {
	if recipient == nil || recipient.ID == "" {
		return types.DeliveryOutcome{Reason: "recipient has no user id"}, nil
	}

	id, err := s.store.Create(ctx, &types.InAppNotification{
		UserID:  recipient.ID,
		Title:   msg.Subject,
		Message: msg.Body,
		Data: map[string]any{
			"appointmentId": msg.Payload.AppointmentID,
			"minutesBefore": msg.Payload.MinutesBefore,
		},
	})
	if err != nil {
		return types.DeliveryOutcome{}, fmt.Errorf("create in-app notification: %w", err)
	}
	return types.DeliveryOutcome{Success: true, ProviderID: id}, nil
}

var _ types.ChannelSender = (*Sender)(nil)
