package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"carereminders/internal/types"
)

// RecipientRepository resolves users into reminder recipients.
type RecipientRepository struct {
	db DBTX
}

func NewRecipientRepository(db DBTX) *RecipientRepository {
	return &RecipientRepository{db: db}
}

var _ types.RecipientLookup = (*RecipientRepository)(nil)

// GetByID returns contact details and stored preferences for userID.
// Soft-deleted users are treated as missing.
func (r *RecipientRepository) GetByID(ctx context.Context, userID string) (*types.Recipient, error) {
	var (
		rec                                 types.Recipient
		email, phone, first, last, timezone *string
		preferences                         []byte
	)
	err := r.db.QueryRow(ctx,
		`SELECT id, email, phone, first_name, last_name, timezone, preferences
		 FROM users
		 WHERE id = $1 AND deleted_at IS NULL`,
		userID,
	).Scan(&rec.ID, &email, &phone, &first, &last, &timezone, &preferences)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil).
				WithDetails(map[string]any{"user_id": userID})
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve recipient", err)
	}
	rec.Email = derefString(email)
	rec.Phone = derefString(phone)
	rec.FirstName = derefString(first)
	rec.LastName = derefString(last)
	rec.Timezone = derefString(timezone)
	rec.Preferences = preferences
	return &rec, nil
}
