// Package users persists enrolled users and their central-only profiles.
package users

import (
	"context"

	"github.com/dmitrijs2005/srbio/internal/models"
)

type Repository interface {
	// UpsertFromTerminal inserts u, or for an existing (device, external id)
	// pair updates only the credential and card number.
	UpsertFromTerminal(ctx context.Context, u *models.EnrolledUser) error

	// ExternalIDs returns the external user ids stored for a device.
	ExternalIDs(ctx context.Context, deviceID string) (map[string]struct{}, error)

	ListWithProfiles(ctx context.Context, deviceID string) ([]models.UserWithProfile, error)
	GetWithProfile(ctx context.Context, id string) (*models.UserWithProfile, error)

	UpdateIdentity(ctx context.Context, id, displayName string, role models.Role) error
	UpsertProfile(ctx context.Context, p *models.UserProfile) error
	SetSlot(ctx context.Context, id string, slot int) error
	CountByDevice(ctx context.Context, deviceID string) (int, error)
}
