// Package repomanager opens the store, migrates it, and vends repositories
// bound to a connection or transaction.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/srbio/internal/dbx"
	"github.com/dmitrijs2005/srbio/internal/repositories/admins"
	"github.com/dmitrijs2005/srbio/internal/repositories/attendance"
	"github.com/dmitrijs2005/srbio/internal/repositories/devices"
	"github.com/dmitrijs2005/srbio/internal/repositories/users"
)

type RepositoryManager interface {
	DB() *sql.DB
	Dialect() dbx.Dialect

	Devices(db dbx.DBTX) devices.Repository
	Users(db dbx.DBTX) users.Repository
	Attendance(db dbx.DBTX) attendance.Repository
	Admins(db dbx.DBTX) admins.Repository

	Status(ctx context.Context) (*StoreStatus, error)
	Optimize(ctx context.Context) error
	Snapshot(ctx context.Context, path string) error
	Close() error
}

// StoreStatus summarizes the store for the admin API.
type StoreStatus struct {
	Driver    string         `json:"driver"`
	Tables    map[string]int `json:"tables"`
	SizeBytes int64          `json:"size_bytes,omitempty"`
}
