// Package push delivers appointment reminders as web-push notifications to
// every subscription a user has registered.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"carereminders/internal/external"
	"carereminders/internal/types"
)

// SubscriptionStore lists and prunes a user's push subscriptions.
type SubscriptionStore interface {
	ListByUser(ctx context.Context, userID string) ([]types.PushSubscription, error)
	DeleteByEndpoint(ctx context.Context, endpoint string) error
}

// Payload is the JSON handed to the service worker.
type Payload struct {
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Tag   string         `json:"tag,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
}

// Sender implements types.ChannelSender for PUSH reminders.
type Sender struct {
	transport external.PushTransport
	store     SubscriptionStore
	logger    types.Logger
}

// NewSender creates a push Sender. A nil transport means push is not
// configured and every delivery fails.
func NewSender(transport external.PushTransport, store SubscriptionStore, logger types.Logger) *Sender {
	return &Sender{transport: transport, store: store, logger: logger}
}

func (s *Sender) Method() types.NotificationMethod {
	return types.MethodPush
}

// Deliver fans msg out to all of the recipient's subscriptions. The outcome
// is successful iff at least one subscription accepted it. Subscriptions
// the push service reports as gone are deleted.
func (s *Sender) Deliver(ctx context.Context, recipient *types.Recipient, msg types.ReminderMessage) (types.DeliveryOutcome, error) {
	if s.transport == nil {
		return types.DeliveryOutcome{Reason: "push transport not configured"}, nil
	}
	if recipient == nil || recipient.ID == "" {
		return types.DeliveryOutcome{Reason: "recipient has no user id"}, nil
	}

	subs, err := s.store.ListByUser(ctx, recipient.ID)
	if err != nil {
		return types.DeliveryOutcome{}, fmt.Errorf("list push subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return types.DeliveryOutcome{Reason: "recipient has no push subscriptions"}, nil
	}

	payload, err := json.Marshal(Payload{
		Title: msg.Subject,
		Body:  msg.Body,
		Tag:   "reminder-" + msg.Payload.AppointmentID,
		Data:  map[string]any{"appointmentId": msg.Payload.AppointmentID},
	})
	if err != nil {
		return types.DeliveryOutcome{}, fmt.Errorf("marshal push payload: %w", err)
	}

	var out types.DeliveryOutcome
	for _, sub := range subs {
		err := s.transport.SendPush(ctx, sub, payload)
		switch {
		case err == nil:
			out.Sent++
		case errors.Is(err, external.ErrSubscriptionExpired):
			out.Errors++
			if delErr := s.store.DeleteByEndpoint(ctx, sub.Endpoint); delErr != nil {
				s.logger.Warn("failed to prune expired push subscription",
					"subscription_id", sub.ID,
					"error", delErr.Error(),
				)
			} else {
				s.logger.Info("pruned expired push subscription", "subscription_id", sub.ID)
			}
		default:
			out.Errors++
			s.logger.Warn("push delivery failed",
				"subscription_id", sub.ID,
				"job_id", msg.JobID,
				"error", err.Error(),
			)
		}
	}

	out.Success = out.Sent > 0
	if !out.Success {
		out.Reason = fmt.Sprintf("push delivery failed for all %d subscriptions", out.Errors)
	}
	return out, nil
}

var _ types.ChannelSender = (*Sender)(nil)
