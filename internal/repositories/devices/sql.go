package devices

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/srbio/internal/common"
	"github.com/dmitrijs2005/srbio/internal/dbx"
	"github.com/dmitrijs2005/srbio/internal/models"
)

// SQLRepository implements Repository over a dbx.DBTX. Queries use '?'
// placeholders; the caller binds db for the target dialect.
type SQLRepository struct {
	db dbx.DBTX
}

func NewSQLRepository(db dbx.DBTX) *SQLRepository {
	return &SQLRepository{db: db}
}

const deviceColumns = `id, name, address, port, status, last_seen_at, mac_address, model, firmware, serial_number, created_at`

func (r *SQLRepository) Create(ctx context.Context, d *models.Device) (*models.Device, error) {
	out := *d
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	if out.Port == 0 {
		out.Port = common.DefaultTerminalPort
	}
	if out.Status == "" {
		out.Status = models.StatusOffline
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}

	query := `INSERT INTO devices (` + deviceColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		out.ID, out.Name, out.Address, out.Port, string(out.Status), unixOrNil(out.LastSeenAt),
		out.MACAddress, out.Model, out.Firmware, out.SerialNumber, out.CreatedAt.Unix())
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrConflict
		}
		return nil, fmt.Errorf("failed to insert device: %w", err)
	}
	return &out, nil
}

// Update edits the admin-owned fields. Status and hardware are left alone.
func (r *SQLRepository) Update(ctx context.Context, d *models.Device) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE devices SET name = ?, address = ?, port = ?, mac_address = ?, model = ? WHERE id = ?`,
		d.Name, d.Address, d.Port, d.MACAddress, d.Model, d.ID)
	if err != nil {
		return fmt.Errorf("failed to update device: %w", err)
	}
	return expectOne(res)
}

func (r *SQLRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}
	return expectOne(res)
}

func (r *SQLRepository) GetByID(ctx context.Context, id string) (*models.Device, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id = ?`, id)
	d, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	return d, nil
}

func (r *SQLRepository) List(ctx context.Context) ([]models.Device, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+deviceColumns+` FROM devices ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	defer rows.Close()

	var out []models.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (r *SQLRepository) UpdateStatus(ctx context.Context, id string, status models.Status, seenAt *time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE devices SET status = ?, last_seen_at = COALESCE(?, last_seen_at) WHERE id = ?`,
		string(status), unixOrNil(seenAt), id)
	if err != nil {
		return fmt.Errorf("failed to update device status: %w", err)
	}
	return expectOne(res)
}

func (r *SQLRepository) UpdateHardware(ctx context.Context, id string, hw Hardware) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE devices SET
			model = COALESCE(NULLIF(?, ''), model),
			mac_address = COALESCE(NULLIF(?, ''), mac_address),
			firmware = COALESCE(NULLIF(?, ''), firmware),
			serial_number = COALESCE(NULLIF(?, ''), serial_number)
		WHERE id = ?`,
		hw.Model, hw.MACAddress, hw.Firmware, hw.SerialNumber, id)
	if err != nil {
		return fmt.Errorf("failed to update device hardware: %w", err)
	}
	return expectOne(res)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDevice(s scanner) (*models.Device, error) {
	var (
		d         models.Device
		status    string
		lastSeen  sql.NullInt64
		createdAt int64
	)
	if err := s.Scan(&d.ID, &d.Name, &d.Address, &d.Port, &status, &lastSeen,
		&d.MACAddress, &d.Model, &d.Firmware, &d.SerialNumber, &createdAt); err != nil {
		return nil, err
	}
	d.Status = models.Status(status)
	if lastSeen.Valid {
		t := time.Unix(lastSeen.Int64, 0).UTC()
		d.LastSeenAt = &t
	}
	d.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &d, nil
}

func unixOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
