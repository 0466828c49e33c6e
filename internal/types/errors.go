package types

import (
	"errors"
	"fmt"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// All packages MUST use these constants instead of hardcoded strings.
const (
	// Validation
	ErrCodeValidationWindowMinutes ErrorCode = "validation_window_minutes"
	ErrCodeValidationBatchSize     ErrorCode = "validation_batch_size"
	ErrCodeValidationMissingField  ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidMethod ErrorCode = "validation_invalid_method"
	ErrCodeValidationInvalidStatus ErrorCode = "validation_invalid_status"

	// Not Found
	ErrCodeNotFoundUser         ErrorCode = "not_found_user"
	ErrCodeNotFoundNotification ErrorCode = "not_found_scheduled_notification"

	// Conflict
	ErrCodeConflictTerminalStatus   ErrorCode = "conflict_terminal_status"
	ErrCodeConflictAlreadyScheduled ErrorCode = "conflict_already_scheduled"

	// Internal
	ErrCodeInternalDB         ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"

	// Upstream
	ErrCodeUpstreamEmailProvider ErrorCode = "upstream_email_provider_unavailable"
	ErrCodeUpstreamSMSProvider   ErrorCode = "upstream_sms_provider_unavailable"
	ErrCodeUpstreamPushProvider  ErrorCode = "upstream_push_provider_unavailable"
	ErrCodeUpstreamUnavailable   ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamRateLimited   ErrorCode = "upstream_rate_limited"

	// Delivery-specific
	ErrCodeEmailBlocked       ErrorCode = "email_blocked"
	ErrCodeRecipientNoContact ErrorCode = "recipient_missing_contact"
)

// AppError is the standard application error type used throughout the module.
// It carries a stable code for classification and wraps the underlying cause.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails returns a copy of the error with the provided details merged in.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// HasCode reports whether any AppError in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	for err != nil {
		if !errors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Err
	}
	return false
}
