package db

import (
	"context"

	"github.com/google/uuid"

	"carereminders/internal/types"
)

// InAppNotificationRepository persists inbox notifications.
type InAppNotificationRepository struct {
	db DBTX
}

func NewInAppNotificationRepository(db DBTX) *InAppNotificationRepository {
	return &InAppNotificationRepository{db: db}
}

// Create inserts n and returns its ID. created_at comes from the database.
func (r *InAppNotificationRepository) Create(ctx context.Context, n *types.InAppNotification) (string, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	err := r.db.QueryRow(ctx,
		`INSERT INTO in_app_notifications (id, user_id, title, message, data)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		n.ID,
		n.UserID,
		n.Title,
		n.Message,
		types.JSONMap(n.Data),
	).Scan(&n.CreatedAt)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalDB, "failed to create in-app notification", err)
	}
	return n.ID, nil
}
