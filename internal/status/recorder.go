// Package status owns device reachability writes. Both the health monitor
// and terminal sessions go through Recorder so transitions are written and
// announced the same way.
package status

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/srbio/internal/logging"
	"github.com/dmitrijs2005/srbio/internal/models"
	"github.com/dmitrijs2005/srbio/internal/repositories/devices"
	"github.com/dmitrijs2005/srbio/internal/timex"
)

// Notifier is told about every status transition.
type Notifier interface {
	DeviceStatusChanged(ctx context.Context, change models.StatusChange)
}

// Notifiers fans a change out to several notifiers.
type Notifiers []Notifier

func (n Notifiers) DeviceStatusChanged(ctx context.Context, change models.StatusChange) {
	for _, x := range n {
		if x != nil {
			x.DeviceStatusChanged(ctx, change)
		}
	}
}

type Recorder struct {
	devices  devices.Repository
	notifier Notifier
	clock    timex.Clock
	logger   logging.Logger
}

func NewRecorder(repo devices.Repository, notifier Notifier, clock timex.Clock, logger logging.Logger) *Recorder {
	if clock == nil {
		clock = timex.SystemClock{}
	}
	if notifier == nil {
		notifier = Notifiers(nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Recorder{devices: repo, notifier: notifier, clock: clock, logger: logger.With("module", "status")}
}

// Apply records a reachability observation for a device whose stored
// status is prev:
//
//   - online: status=online and last_seen_at=now, always
//   - offline after online: status=offline
//   - offline after offline: nothing is written
//
// It reports whether the status changed.
func (r *Recorder) Apply(ctx context.Context, deviceID string, prev models.Status, online bool) (bool, error) {
	if online {
		now := r.clock.Now().UTC()
		if err := r.devices.UpdateStatus(ctx, deviceID, models.StatusOnline, &now); err != nil {
			return false, fmt.Errorf("failed to mark device online: %w", err)
		}
		if prev == models.StatusOnline {
			return false, nil
		}
		r.announce(ctx, deviceID, models.StatusOnline, now)
		return true, nil
	}

	if prev != models.StatusOnline {
		return false, nil
	}
	if err := r.devices.UpdateStatus(ctx, deviceID, models.StatusOffline, nil); err != nil {
		return false, fmt.Errorf("failed to mark device offline: %w", err)
	}
	r.announce(ctx, deviceID, models.StatusOffline, r.clock.Now().UTC())
	return true, nil
}

// MarkOnline records a successful session.
func (r *Recorder) MarkOnline(ctx context.Context, deviceID string) error {
	return r.mark(ctx, deviceID, true)
}

// MarkOffline records a failed session.
func (r *Recorder) MarkOffline(ctx context.Context, deviceID string) error {
	return r.mark(ctx, deviceID, false)
}

func (r *Recorder) mark(ctx context.Context, deviceID string, online bool) error {
	d, err := r.devices.GetByID(ctx, deviceID)
	if err != nil {
		return err
	}
	_, err = r.Apply(ctx, deviceID, d.Status, online)
	return err
}

func (r *Recorder) announce(ctx context.Context, deviceID string, st models.Status, at time.Time) {
	r.logger.Info(ctx, "device status changed", "device_id", deviceID, "status", st)
	r.notifier.DeviceStatusChanged(ctx, models.StatusChange{DeviceID: deviceID, Status: st, At: at})
}
