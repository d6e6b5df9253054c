package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/srbio/internal/dbx"
	"github.com/dmitrijs2005/srbio/internal/models"
)

type SQLRepository struct {
	db dbx.DBTX
}

func NewSQLRepository(db dbx.DBTX) *SQLRepository {
	return &SQLRepository{db: db}
}

func (r *SQLRepository) InsertIgnore(ctx context.Context, e *models.AttendanceEvent) (bool, error) {
	id := e.ID
	if id == "" {
		id = uuid.NewString()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_events (id, device_id, external_user_id, ts, verification_method, event_kind)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (device_id, external_user_id, ts) DO NOTHING`,
		id, e.DeviceID, e.ExternalUserID, e.Timestamp.Unix(), e.VerificationMethod, e.EventKind)
	if err != nil {
		return false, fmt.Errorf("failed to insert attendance event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	if n == 1 {
		e.ID = id
	}
	return n == 1, nil
}

// ListByDevice returns events newest first with the enrolled user's names
// joined in. A non-positive limit returns everything.
func (r *SQLRepository) ListByDevice(ctx context.Context, deviceID string, limit, offset int) ([]models.AttendanceView, error) {
	query := `
		SELECT a.id, a.device_id, a.external_user_id, a.ts, a.verification_method, a.event_kind,
			COALESCE(u.display_name, ''), COALESCE(p.last_name, '')
		FROM attendance_events a
		LEFT JOIN enrolled_users u ON u.device_id = a.device_id AND u.external_user_id = a.external_user_id
		LEFT JOIN user_profiles p ON p.owner_user_id = u.id
		WHERE a.device_id = ?
		ORDER BY a.ts DESC, a.external_user_id`
	args := []any{deviceID}
	if limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance: %w", err)
	}
	defer rows.Close()

	var out []models.AttendanceView
	for rows.Next() {
		var (
			v  models.AttendanceView
			ts int64
		)
		if err := rows.Scan(&v.ID, &v.DeviceID, &v.ExternalUserID, &ts, &v.VerificationMethod, &v.EventKind,
			&v.DisplayName, &v.LastName); err != nil {
			return nil, fmt.Errorf("failed to scan attendance: %w", err)
		}
		v.Timestamp = time.Unix(ts, 0).UTC()
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *SQLRepository) CountByDevice(ctx context.Context, deviceID string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attendance_events WHERE device_id = ?`, deviceID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count attendance: %w", err)
	}
	return n, nil
}
