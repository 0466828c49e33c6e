package db

import (
	"context"
	"time"

	"carereminders/internal/types"
)

// AppointmentRepository reads appointments for the scheduler. Appointments
// are owned elsewhere; this repository never writes.
type AppointmentRepository struct {
	db DBTX
}

func NewAppointmentRepository(db DBTX) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

// FindUpcoming returns appointments starting in [windowStart, windowEnd]
// whose status is one of statuses, with participants and the creator's
// operator preferences attached. Ordered by start time.
func (r *AppointmentRepository) FindUpcoming(ctx context.Context, windowStart, windowEnd time.Time, statuses []types.AppointmentStatus) ([]*types.Appointment, error) {
	statusArgs := make([]string, len(statuses))
	for i, s := range statuses {
		statusArgs[i] = string(s)
	}

	rows, err := r.db.Query(ctx,
		`SELECT a.id, a.title, a.start_time, a.status, a.created_by_id,
		        COALESCE(array_agg(p.user_id ORDER BY p.user_id) FILTER (WHERE p.user_id IS NOT NULL), '{}') AS participant_ids,
		        o.id, o.preferences
		 FROM appointments a
		 LEFT JOIN appointment_participants p ON p.appointment_id = a.id
		 LEFT JOIN users u ON u.id = a.created_by_id
		 LEFT JOIN operators o ON o.id = u.operator_id
		 WHERE a.start_time >= $1
		   AND a.start_time <= $2
		   AND a.status = ANY($3)
		 GROUP BY a.id, o.id
		 ORDER BY a.start_time ASC, a.id ASC`,
		windowStart.UTC(),
		windowEnd.UTC(),
		statusArgs,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query upcoming appointments", err)
	}
	defer rows.Close()

	var results []*types.Appointment
	for rows.Next() {
		var (
			a     types.Appointment
			orgID *string
			prefs []byte
		)
		if err := rows.Scan(
			&a.ID,
			&a.Title,
			&a.StartTime,
			&a.Status,
			&a.CreatedByID,
			&a.ParticipantIDs,
			&orgID,
			&prefs,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan appointment", err)
		}
		a.OrganizationID = derefString(orgID)
		a.OrganizationPreferences = prefs
		results = append(results, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating appointments", err)
	}
	return results, nil
}
