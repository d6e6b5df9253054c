// Package health keeps the stored reachability of every device current.
package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/srbio/internal/logging"
	"github.com/dmitrijs2005/srbio/internal/models"
	"github.com/dmitrijs2005/srbio/internal/repositories/devices"
	"github.com/dmitrijs2005/srbio/internal/status"
	"github.com/dmitrijs2005/srbio/internal/timex"
)

// ProbeResult is the last observation for one device.
type ProbeResult struct {
	DeviceID  string        `json:"device_id"`
	Name      string        `json:"name"`
	Online    bool          `json:"online"`
	RTT       time.Duration `json:"rtt_ns"`
	CheckedAt time.Time     `json:"checked_at"`
	Err       string        `json:"error,omitempty"`
}

type Options struct {
	Interval    time.Duration
	Concurrency int
}

// Monitor probes all devices on a fixed interval. It never opens a terminal
// session and takes no device lock.
type Monitor struct {
	devices  devices.Repository
	prober   Prober
	recorder *status.Recorder
	clock    timex.Clock
	opts     Options
	logger   logging.Logger

	mu   sync.RWMutex
	last map[string]ProbeResult
}

func NewMonitor(repo devices.Repository, prober Prober, recorder *status.Recorder, clock timex.Clock, opts Options, logger logging.Logger) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Second
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 32
	}
	if clock == nil {
		clock = timex.SystemClock{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Monitor{
		devices:  repo,
		prober:   prober,
		recorder: recorder,
		clock:    clock,
		opts:     opts,
		logger:   logger.With("module", "health"),
		last:     make(map[string]ProbeResult),
	}
}

// Run probes once right away and then on every tick until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	m.logger.Info(ctx, "health monitor started", "interval", m.opts.Interval.String())
	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	for {
		if err := m.RunOnce(ctx); err != nil && ctx.Err() == nil {
			m.logger.Error(ctx, "health round failed", "err", err)
		}
		select {
		case <-ctx.Done():
			m.logger.Info(ctx, "health monitor stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce probes every known device in parallel and records the results.
func (m *Monitor) RunOnce(ctx context.Context) error {
	list, err := m.devices.List(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.Concurrency)
	for i := range list {
		d := list[i]
		g.Go(func() error {
			m.check(gctx, &d)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	m.forget(list)
	return nil
}

// Check probes a single device outside the regular tick.
func (m *Monitor) Check(ctx context.Context, d *models.Device) ProbeResult {
	return m.check(ctx, d)
}

func (m *Monitor) check(ctx context.Context, d *models.Device) ProbeResult {
	rtt, err := m.prober.Probe(ctx, d.Address, d.Port)
	res := ProbeResult{
		DeviceID:  d.ID,
		Name:      d.Name,
		Online:    err == nil,
		RTT:       rtt,
		CheckedAt: m.clock.Now().UTC(),
	}
	if err != nil {
		res.Err = err.Error()
	}

	// a cancelled round says nothing about the device
	if ctx.Err() != nil {
		return res
	}

	if m.recorder != nil {
		if _, aerr := m.recorder.Apply(ctx, d.ID, d.Status, res.Online); aerr != nil {
			m.logger.Error(ctx, "failed to record probe", "device_id", d.ID, "err", aerr)
		}
	}

	m.mu.Lock()
	m.last[d.ID] = res
	m.mu.Unlock()
	return res
}

// forget drops results for devices that no longer exist.
func (m *Monitor) forget(current []models.Device) {
	keep := make(map[string]struct{}, len(current))
	for _, d := range current {
		keep[d.ID] = struct{}{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.last {
		if _, ok := keep[id]; !ok {
			delete(m.last, id)
		}
	}
}

// Snapshot returns the last probe result per device.
func (m *Monitor) Snapshot() map[string]ProbeResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]ProbeResult, len(m.last))
	for k, v := range m.last {
		out[k] = v
	}
	return out
}
