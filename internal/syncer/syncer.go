// Package syncer moves rosters and attendance between terminals and the
// store. Every operation runs inside one session.Manager session.
package syncer

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/srbio/internal/logging"
	"github.com/dmitrijs2005/srbio/internal/models"
	"github.com/dmitrijs2005/srbio/internal/repositories/devices"
	"github.com/dmitrijs2005/srbio/internal/session"
	"github.com/dmitrijs2005/srbio/internal/terminal"
)

// RecordFailure is one record that was skipped without aborting its batch.
type RecordFailure struct {
	ExternalUserID string
	Err            error
}

func (f RecordFailure) String() string {
	if f.ExternalUserID == "" {
		return f.Err.Error()
	}
	return f.ExternalUserID + ": " + f.Err.Error()
}

// sessions is the part of session.Manager the syncers use.
type sessions interface {
	WithSession(ctx context.Context, d *models.Device, fn session.Action) error
	MarkOnline(ctx context.Context, deviceID string) error
}

type base struct {
	sessions sessions
	devices  devices.Repository
	logger   logging.Logger
}

func newBase(s sessions, repo devices.Repository, logger logging.Logger, module string) base {
	if logger == nil {
		logger = logging.NewNop()
	}
	return base{sessions: s, devices: repo, logger: logger.With("module", module)}
}

// run loads the device, runs fn in a session and marks the device online
// when fn succeeded.
func (b base) run(ctx context.Context, deviceID string, fn session.Action) error {
	d, err := b.devices.GetByID(ctx, deviceID)
	if err != nil {
		return err
	}
	if err := b.sessions.WithSession(ctx, d, fn); err != nil {
		return err
	}
	if err := b.sessions.MarkOnline(ctx, deviceID); err != nil {
		b.logger.Warn(ctx, "failed to mark device online", "device_id", deviceID, "err", err)
	}
	return nil
}

func (b base) reject(ctx context.Context, deviceID, externalID string, err error, failures *[]RecordFailure) {
	f := RecordFailure{ExternalUserID: externalID, Err: err}
	var verr *terminal.ValidationError
	if f.ExternalUserID == "" && errors.As(err, &verr) {
		f.ExternalUserID = verr.ExternalUserID
	}
	b.logger.Warn(ctx, "record rejected", "device_id", deviceID, "err", err)
	*failures = append(*failures, f)
}
