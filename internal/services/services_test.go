package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/srbio/internal/dbx"
	"github.com/dmitrijs2005/srbio/internal/health"
	"github.com/dmitrijs2005/srbio/internal/lock"
	"github.com/dmitrijs2005/srbio/internal/models"
	"github.com/dmitrijs2005/srbio/internal/repositories/repomanager"
	"github.com/dmitrijs2005/srbio/internal/repositories/repotest"
	"github.com/dmitrijs2005/srbio/internal/session"
	"github.com/dmitrijs2005/srbio/internal/status"
	"github.com/dmitrijs2005/srbio/internal/syncer"
	"github.com/dmitrijs2005/srbio/internal/terminal/sim"
)

type stubProber struct {
	mu   sync.Mutex
	down map[string]bool
}

func (p *stubProber) Probe(_ context.Context, address string, _ int) (time.Duration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.down[address] {
		return 0, errors.New("i/o timeout")
	}
	return 2 * time.Millisecond, nil
}

type recordedEvent struct {
	name string
	data any
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (b *recordingBroadcaster) Broadcast(event string, data any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, recordedEvent{event, data})
}

func (b *recordingBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

type fixture struct {
	repos    repomanager.RepositoryManager
	fleet    *sim.Fleet
	prober   *stubProber
	monitor  *health.Monitor
	sessions *session.Manager
	events   *recordingBroadcaster

	devices *DeviceService
	users   *UserService
	sync    *SyncService
	logs    *AttendanceService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	m := repomanager.NewSQLRepositoryManager(repotest.OpenSQLite(t), "sqlite", dbx.SQLite, nil)
	devRepo := m.Devices(m.DB())

	f := &fixture{
		repos:  m,
		fleet:  sim.NewFleet(false),
		prober: &stubProber{down: map[string]bool{}},
		events: &recordingBroadcaster{},
	}
	rec := status.NewRecorder(devRepo, nil, nil, nil)
	f.sessions = session.NewManager(f.fleet, lock.NewLocal(), rec, session.Options{}, nil)
	f.monitor = health.NewMonitor(devRepo, f.prober, rec, nil, health.Options{}, nil)

	f.devices = NewDeviceService(m, f.sessions, f.monitor, nil)
	f.users = NewUserService(m)
	f.logs = NewAttendanceService(m)
	f.sync = NewSyncService(m,
		syncer.NewAttendanceSyncer(f.sessions, devRepo, m.Attendance(m.DB()), nil, time.UTC, nil),
		syncer.NewUserDownloader(f.sessions, devRepo, m.Users(m.DB()), nil),
		syncer.NewUserUploader(f.sessions, devRepo, m.Users(m.DB()), 24, nil),
		f.events, false, nil)
	return f
}

// addDevice stores a device and puts a simulated terminal behind it.
func (f *fixture) addDevice(t *testing.T, name, addr string) (*models.Device, *sim.Terminal) {
	t.Helper()
	d, err := f.devices.Create(context.Background(), &models.Device{Name: name, Address: addr})
	require.NoError(t, err)
	return d, f.fleet.Add(d.Address, d.Port)
}
