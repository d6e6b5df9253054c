// Package session opens bounded, serialized terminal sessions.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/srbio/internal/lock"
	"github.com/dmitrijs2005/srbio/internal/logging"
	"github.com/dmitrijs2005/srbio/internal/models"
	"github.com/dmitrijs2005/srbio/internal/status"
	"github.com/dmitrijs2005/srbio/internal/terminal"
)

// ErrDeviceBusy means another session held the device for longer than
// Options.LockWait.
var ErrDeviceBusy = errors.New("device busy")

// Action runs inside an open session.
type Action func(ctx context.Context, c terminal.Client) error

type Options struct {
	ConnectTimeout time.Duration
	SessionTimeout time.Duration
	// LockWait bounds the wait for another session on the same device.
	LockWait time.Duration
}

// Manager is the only way the sync engine talks to a terminal. At most one
// session per device is open at a time.
type Manager struct {
	dialer   terminal.Dialer
	locker   lock.Locker
	recorder *status.Recorder
	opts     Options
	logger   logging.Logger
}

func NewManager(dialer terminal.Dialer, locker lock.Locker, recorder *status.Recorder, opts Options, logger logging.Logger) *Manager {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.SessionTimeout <= 0 {
		opts.SessionTimeout = 60 * time.Second
	}
	if opts.LockWait <= 0 {
		opts.LockWait = 5 * time.Minute
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		dialer:   dialer,
		locker:   locker,
		recorder: recorder,
		opts:     opts,
		logger:   logger.With("module", "session"),
	}
}

// WithSession locks the device, dials it, runs fn and always disconnects.
//
// Terminal failures come back as *terminal.ConnectionError; an unreachable
// or timed-out device is marked offline before returning. Validation and
// store errors from fn pass through untouched. The device is never marked
// online here; callers do that once their work has succeeded.
//
// SessionTimeout starts once the device lock is held. Giving up on the lock
// leaves the device status alone.
func (m *Manager) WithSession(ctx context.Context, d *models.Device, fn Action) (err error) {
	log := m.logger.With("device_id", d.ID)

	unlock, err := m.lock(ctx, d.ID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("device %s: %w", d.ID, ErrDeviceBusy)
		}
		return fmt.Errorf("waiting for device %s: %w", d.ID, err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, m.opts.SessionTimeout)
	defer cancel()

	client, err := m.dial(ctx, d)
	if err != nil {
		m.markOffline(ctx, log, d.ID, err)
		return err
	}
	defer func() {
		if derr := client.Disconnect(); derr != nil {
			log.Warn(ctx, "disconnect failed", "err", derr)
		}
	}()

	err = terminal.Classify(d.ID, fn(ctx, client))
	if err != nil {
		m.markOffline(ctx, log, d.ID, err)
	}
	return err
}

func (m *Manager) lock(ctx context.Context, deviceID string) (func(), error) {
	lctx, cancel := context.WithTimeout(ctx, m.opts.LockWait)
	defer cancel()
	return m.locker.Lock(lctx, deviceID)
}

func (m *Manager) dial(ctx context.Context, d *models.Device) (terminal.Client, error) {
	dctx, cancel := context.WithTimeout(ctx, m.opts.ConnectTimeout)
	defer cancel()

	c, err := m.dialer.Dial(dctx, terminal.Endpoint{DeviceID: d.ID, Address: d.Address, Port: d.Port})
	if err == nil {
		return c, nil
	}

	if errors.Is(err, context.Canceled) {
		return nil, err
	}
	classified := terminal.Classify(d.ID, err)
	if _, ok := classified.(*terminal.ConnectionError); ok {
		return nil, classified
	}
	// any other dial failure still means there is no session
	return nil, &terminal.ConnectionError{Kind: terminal.KindUnreachable, DeviceID: d.ID, Err: err}
}

func (m *Manager) markOffline(ctx context.Context, log logging.Logger, deviceID string, cause error) {
	if !terminal.IsConnectivity(cause) {
		return
	}
	log.Warn(ctx, "terminal session failed", "err", cause)
	if m.recorder == nil {
		return
	}
	// the session context may already be spent
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := m.recorder.MarkOffline(wctx, deviceID); err != nil {
		log.Error(ctx, "failed to mark device offline", "err", err)
	}
}

// MarkOnline records that a session against deviceID succeeded.
func (m *Manager) MarkOnline(ctx context.Context, deviceID string) error {
	if m.recorder == nil {
		return nil
	}
	return m.recorder.MarkOnline(ctx, deviceID)
}
