package db

import (
	"context"

	"carereminders/internal/types"
)

// PushSubscriptionRepository reads and prunes web-push subscriptions.
type PushSubscriptionRepository struct {
	db DBTX
}

func NewPushSubscriptionRepository(db DBTX) *PushSubscriptionRepository {
	return &PushSubscriptionRepository{db: db}
}

// ListByUser returns every subscription registered for userID, oldest first.
func (r *PushSubscriptionRepository) ListByUser(ctx context.Context, userID string) ([]types.PushSubscription, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, endpoint, p256dh_key, auth_key, created_at
		 FROM push_subscriptions
		 WHERE user_id = $1
		 ORDER BY created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list push subscriptions", err)
	}
	defer rows.Close()

	var subs []types.PushSubscription
	for rows.Next() {
		var s types.PushSubscription
		if err := rows.Scan(&s.ID, &s.UserID, &s.Endpoint, &s.P256dhKey, &s.AuthKey, &s.CreatedAt); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan push subscription", err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating push subscriptions", err)
	}
	return subs, nil
}

// DeleteByEndpoint removes an expired subscription. Deleting an endpoint
// that is already gone is not an error.
func (r *PushSubscriptionRepository) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM push_subscriptions WHERE endpoint = $1`, endpoint); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete push subscription", err)
	}
	return nil
}
