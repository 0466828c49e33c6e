// Package email delivers appointment reminders by email through an
// external.EmailTransport (AWS SES in production).
package email

import (
	"errors"

	"carereminders/internal/types"
)

// ErrRecipientBlocked indicates the provider has the recipient on a
// suppression list.
var ErrRecipientBlocked = errors.New("recipient blocked by provider")

// IsBlocklistError reports whether err means the recipient is blocked,
// either via the sentinel or the ErrCodeEmailBlocked AppError the SES
// client returns for rejected messages.
func IsBlocklistError(err error) bool {
	if errors.Is(err, ErrRecipientBlocked) {
		return true
	}
	return types.HasCode(err, types.ErrCodeEmailBlocked)
}
