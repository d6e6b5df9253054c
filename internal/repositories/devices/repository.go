// Package devices persists the terminal fleet.
package devices

import (
	"context"
	"time"

	"github.com/dmitrijs2005/srbio/internal/models"
)

// Hardware is the identity a terminal reports about itself. Empty fields
// leave the stored value unchanged.
type Hardware struct {
	Model        string
	MACAddress   string
	Firmware     string
	SerialNumber string
}

type Repository interface {
	Create(ctx context.Context, d *models.Device) (*models.Device, error)
	Update(ctx context.Context, d *models.Device) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*models.Device, error)
	List(ctx context.Context) ([]models.Device, error)

	// UpdateStatus writes status and, when seenAt is non-nil, last_seen_at.
	UpdateStatus(ctx context.Context, id string, status models.Status, seenAt *time.Time) error
	UpdateHardware(ctx context.Context, id string, hw Hardware) error
}
