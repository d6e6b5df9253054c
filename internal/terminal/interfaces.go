// Package terminal is the boundary to physical attendance terminals.
//
// The binary wire protocol lives in drivers registered by name, the same
// way database/sql drivers are. The sync engine only sees Client and the
// validated records produced by NormalizeUser and NormalizeAttendance.
package terminal

//go:generate mockgen -destination=mock_terminal.go -package=terminal github.com/dmitrijs2005/srbio/internal/terminal Client,Dialer

import (
	"context"
	"time"
)

// Client is one open session with a terminal. It is not safe for
// concurrent use.
type Client interface {
	// Capabilities is fixed for the lifetime of the session.
	Capabilities() Capabilities

	GetInfo(ctx context.Context) (Info, error)
	GetTime(ctx context.Context) (time.Time, error)
	GetUsers(ctx context.Context) ([]RawUser, error)
	GetAttendanceEvents(ctx context.Context) ([]RawAttendance, error)
	SetUser(ctx context.Context, u UserRecord) error
	ClearAttendanceBuffer(ctx context.Context) error
	Disconnect() error
}

// Dialer opens sessions.
type Dialer interface {
	Dial(ctx context.Context, ep Endpoint) (Client, error)
}

// Endpoint addresses one terminal.
type Endpoint struct {
	DeviceID string
	Address  string
	Port     int
}
