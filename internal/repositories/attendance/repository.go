// Package attendance persists punches read from terminals. Rows are
// append-only and keyed by (device, external user, timestamp).
package attendance

import (
	"context"

	"github.com/dmitrijs2005/srbio/internal/models"
)

type Repository interface {
	// InsertIgnore stores e unless an event with the same key exists and
	// reports whether a row was added.
	InsertIgnore(ctx context.Context, e *models.AttendanceEvent) (bool, error)
	ListByDevice(ctx context.Context, deviceID string, limit, offset int) ([]models.AttendanceView, error)
	CountByDevice(ctx context.Context, deviceID string) (int, error)
}
