package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/srbio/internal/common"
	"github.com/dmitrijs2005/srbio/internal/dbx"
	"github.com/dmitrijs2005/srbio/internal/models"
)

type SQLRepository struct {
	db dbx.DBTX
}

func NewSQLRepository(db dbx.DBTX) *SQLRepository {
	return &SQLRepository{db: db}
}

// UpsertFromTerminal never touches display_name, role or internal_slot of
// an existing row. Those belong to administrators and the uploader.
func (r *SQLRepository) UpsertFromTerminal(ctx context.Context, u *models.EnrolledUser) error {
	id := u.ID
	if id == "" {
		id = uuid.NewString()
	}
	role := u.Role
	if !role.Valid() {
		role = models.RoleUser
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO enrolled_users (id, device_id, external_user_id, display_name, role, credential, card_number, internal_slot)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (device_id, external_user_id)
		DO UPDATE SET
			credential = excluded.credential,
			card_number = excluded.card_number`,
		id, u.DeviceID, u.ExternalUserID, u.DisplayName, string(role), u.Credential, u.CardNumber, u.InternalSlot)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrConflict
		}
		return fmt.Errorf("failed to upsert enrolled user: %w", err)
	}
	return nil
}

func (r *SQLRepository) ExternalIDs(ctx context.Context, deviceID string) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT external_user_id FROM enrolled_users WHERE device_id = ?`, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list external ids: %w", err)
	}
	defer rows.Close()

	out := map[string]struct{}{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan external id: %w", err)
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

const withProfileSelect = `
	SELECT u.id, u.device_id, u.external_user_id, u.display_name, u.role, u.credential, u.card_number, u.internal_slot,
		COALESCE(p.last_name, ''), COALESCE(p.address, ''), COALESCE(p.city, ''), COALESCE(p.province, ''),
		COALESCE(p.tax_id, ''), COALESCE(p.phone, ''), COALESCE(p.email, '')
	FROM enrolled_users u
	LEFT JOIN user_profiles p ON p.owner_user_id = u.id`

func (r *SQLRepository) ListWithProfiles(ctx context.Context, deviceID string) ([]models.UserWithProfile, error) {
	rows, err := r.db.QueryContext(ctx, withProfileSelect+` WHERE u.device_id = ? ORDER BY u.external_user_id`, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var out []models.UserWithProfile
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (r *SQLRepository) GetWithProfile(ctx context.Context, id string) (*models.UserWithProfile, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, withProfileSelect+` WHERE u.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (r *SQLRepository) UpdateIdentity(ctx context.Context, id, displayName string, role models.Role) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE enrolled_users SET display_name = ?, role = ? WHERE id = ?`, displayName, string(role), id)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return expectOne(res)
}

func (r *SQLRepository) UpsertProfile(ctx context.Context, p *models.UserProfile) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_profiles (owner_user_id, last_name, address, city, province, tax_id, phone, email)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner_user_id)
		DO UPDATE SET
			last_name = excluded.last_name,
			address = excluded.address,
			city = excluded.city,
			province = excluded.province,
			tax_id = excluded.tax_id,
			phone = excluded.phone,
			email = excluded.email`,
		p.OwnerUserID, p.LastName, p.Address, p.City, p.Province, p.TaxID, p.Phone, p.Email)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

func (r *SQLRepository) SetSlot(ctx context.Context, id string, slot int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE enrolled_users SET internal_slot = ? WHERE id = ?`, slot, id)
	if err != nil {
		return fmt.Errorf("failed to set slot: %w", err)
	}
	return expectOne(res)
}

func (r *SQLRepository) CountByDevice(ctx context.Context, deviceID string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM enrolled_users WHERE device_id = ?`, deviceID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*models.UserWithProfile, error) {
	var (
		u    models.UserWithProfile
		role string
	)
	err := s.Scan(&u.ID, &u.DeviceID, &u.ExternalUserID, &u.DisplayName, &role, &u.Credential, &u.CardNumber, &u.InternalSlot,
		&u.Profile.LastName, &u.Profile.Address, &u.Profile.City, &u.Profile.Province,
		&u.Profile.TaxID, &u.Profile.Phone, &u.Profile.Email)
	if err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	u.Profile.OwnerUserID = u.ID
	return &u, nil
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
