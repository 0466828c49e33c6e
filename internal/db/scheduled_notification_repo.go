package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"carereminders/internal/types"
)

// ScheduledNotificationRepository is the durable job store for reminders.
//
// The dedup key lives in two generated columns (appointment_id and
// minutes_before, both derived from payload) covered by the partial unique
// index uq_scheduled_notifications_dedup. Concurrent scheduler runs racing
// on the same key therefore produce exactly one row.
type ScheduledNotificationRepository struct {
	db DBTX
}

func NewScheduledNotificationRepository(db DBTX) *ScheduledNotificationRepository {
	return &ScheduledNotificationRepository{db: db}
}

const scheduledNotificationColumns = `id, user_id, type, method, status, scheduled_for, payload,
	failure_reason, sent_at, created_at, updated_at`

func scanScheduledNotification(row pgx.Row) (*types.ScheduledNotification, error) {
	var n types.ScheduledNotification
	var failureReason *string
	err := row.Scan(
		&n.ID,
		&n.UserID,
		&n.Type,
		&n.Method,
		&n.Status,
		&n.ScheduledFor,
		&n.Payload,
		&failureReason,
		&n.SentAt,
		&n.CreatedAt,
		&n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	n.FailureReason = derefString(failureReason)
	return &n, nil
}

// FindExisting returns the non-cancelled job for the dedup key, or nil when
// there is none.
func (r *ScheduledNotificationRepository) FindExisting(ctx context.Context, userID, appointmentID string, method types.NotificationMethod, minutesBefore int) (*types.ScheduledNotification, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+scheduledNotificationColumns+`
		 FROM scheduled_notifications
		 WHERE user_id = $1
		   AND appointment_id = $2
		   AND method = $3
		   AND minutes_before = $4
		   AND status <> 'CANCELLED'
		 LIMIT 1`,
		userID,
		appointmentID,
		string(method),
		minutesBefore,
	)
	n, err := scanScheduledNotification(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to look up scheduled notification", err)
	}
	return n, nil
}

// Create inserts n as a PENDING job. It returns created=false, with no
// error, when a non-cancelled job with the same dedup key already exists.
// ID, Status and Type are filled in when empty.
func (r *ScheduledNotificationRepository) Create(ctx context.Context, n *types.ScheduledNotification) (bool, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Type == "" {
		n.Type = types.NotificationAppointmentReminder
	}
	n.Status = types.JobStatusPending
	if n.Payload.Method == "" {
		n.Payload.Method = n.Method
	}
	if n.Payload.Method != n.Method {
		return false, types.NewAppError(types.ErrCodeValidationInvalidMethod,
			fmt.Sprintf("payload method %s does not match job method %s", n.Payload.Method, n.Method), nil)
	}

	row := r.db.QueryRow(ctx,
		`INSERT INTO scheduled_notifications
		 (id, user_id, type, method, status, scheduled_for, payload)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (user_id, appointment_id, method, minutes_before)
		   WHERE status <> 'CANCELLED'
		 DO NOTHING
		 RETURNING created_at, updated_at`,
		n.ID,
		n.UserID,
		string(n.Type),
		string(n.Method),
		string(n.Status),
		n.ScheduledFor.UTC(),
		n.Payload,
	)
	if err := row.Scan(&n.CreatedAt, &n.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isUniqueViolation(err) {
			return false, nil
		}
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to create scheduled notification", err)
	}
	return true, nil
}

// FindDue returns up to limit PENDING jobs with scheduled_for <= now,
// oldest first. Served by idx_scheduled_notifications_due.
func (r *ScheduledNotificationRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]*types.ScheduledNotification, error) {
	if limit <= 0 {
		return nil, types.NewAppError(types.ErrCodeValidationBatchSize, "limit must be positive", nil)
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+scheduledNotificationColumns+`
		 FROM scheduled_notifications
		 WHERE status = 'PENDING' AND scheduled_for <= $1
		 ORDER BY scheduled_for ASC, id ASC
		 LIMIT $2`,
		now.UTC(),
		limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query due scheduled notifications", err)
	}
	defer rows.Close()

	var results []*types.ScheduledNotification
	for rows.Next() {
		n, scanErr := scanScheduledNotification(rows)
		if scanErr != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan scheduled notification", scanErr)
		}
		results = append(results, n)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating scheduled notifications", err)
	}
	return results, nil
}

// MarkStatus moves a PENDING job to SENT or FAILED. The update is guarded on
// status = 'PENDING' so a job transitions at most once; a second call
// returns ErrCodeConflictTerminalStatus and leaves the row untouched.
func (r *ScheduledNotificationRepository) MarkStatus(ctx context.Context, id string, status types.JobStatus, reason string) error {
	if status != types.JobStatusSent && status != types.JobStatusFailed {
		return types.NewAppError(types.ErrCodeValidationInvalidStatus,
			fmt.Sprintf("cannot mark scheduled notification as %s", status), nil)
	}
	if status == types.JobStatusSent {
		reason = ""
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE scheduled_notifications SET
			status = $2,
			failure_reason = $3,
			sent_at = CASE WHEN $2 = 'SENT' THEN NOW() ELSE NULL END,
			updated_at = NOW()
		 WHERE id = $1 AND status = 'PENDING'`,
		id,
		string(status),
		nilIfEmpty(reason),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update scheduled notification status", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var current string
	err = r.db.QueryRow(ctx, `SELECT status FROM scheduled_notifications WHERE id = $1`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.NewAppError(types.ErrCodeNotFoundNotification, "scheduled notification not found", nil).
				WithDetails(map[string]any{"id": id})
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to read scheduled notification status", err)
	}
	return types.NewAppError(types.ErrCodeConflictTerminalStatus,
		fmt.Sprintf("scheduled notification is already %s", current), nil).
		WithDetails(map[string]any{"id": id, "status": current})
}

// GetByID returns a single job.
func (r *ScheduledNotificationRepository) GetByID(ctx context.Context, id string) (*types.ScheduledNotification, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+scheduledNotificationColumns+` FROM scheduled_notifications WHERE id = $1`,
		id,
	)
	n, err := scanScheduledNotification(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundNotification, "scheduled notification not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve scheduled notification", err)
	}
	return n, nil
}

// CountPendingDue reports how many jobs are waiting; used by the job runner's
// dry-run output.
func (r *ScheduledNotificationRepository) CountPendingDue(ctx context.Context, now time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM scheduled_notifications
		 WHERE status = 'PENDING' AND scheduled_for <= $1`,
		now.UTC(),
	).Scan(&count)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count due scheduled notifications", err)
	}
	return count, nil
}
