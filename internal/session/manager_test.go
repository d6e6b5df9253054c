package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/dmitrijs2005/srbio/internal/lock"
	"github.com/dmitrijs2005/srbio/internal/models"
	"github.com/dmitrijs2005/srbio/internal/repositories/devices"
	"github.com/dmitrijs2005/srbio/internal/repositories/repotest"
	"github.com/dmitrijs2005/srbio/internal/status"
	"github.com/dmitrijs2005/srbio/internal/terminal"
	"github.com/dmitrijs2005/srbio/internal/terminal/sim"
)

type fixture struct {
	repo     devices.Repository
	recorder *status.Recorder
	device   *models.Device
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := devices.NewSQLRepository(repotest.OpenSQLite(t))
	ctx := context.Background()
	d, err := repo.Create(ctx, &models.Device{Name: "Gate", Address: "10.1.1.1", Port: 4370})
	require.NoError(t, err)
	now := time.Now().UTC()
	require.NoError(t, repo.UpdateStatus(ctx, d.ID, models.StatusOnline, &now))
	d.Status = models.StatusOnline
	return &fixture{repo: repo, recorder: status.NewRecorder(repo, nil, nil, nil), device: d}
}

func (f *fixture) status(t *testing.T) models.Status {
	t.Helper()
	d, err := f.repo.GetByID(context.Background(), f.device.ID)
	require.NoError(t, err)
	return d.Status
}

func TestWithSession_SuccessDisconnects(t *testing.T) {
	f := newFixture(t)
	ctrl := gomock.NewController(t)
	client := terminal.NewMockClient(ctrl)
	dialer := terminal.NewMockDialer(ctrl)

	dialer.EXPECT().
		Dial(gomock.Any(), terminal.Endpoint{DeviceID: f.device.ID, Address: "10.1.1.1", Port: 4370}).
		Return(client, nil)
	client.EXPECT().GetUsers(gomock.Any()).Return(nil, nil)
	client.EXPECT().Disconnect().Return(nil).Times(1)

	m := NewManager(dialer, lock.NewLocal(), f.recorder, Options{}, nil)
	err := m.WithSession(context.Background(), f.device, func(ctx context.Context, c terminal.Client) error {
		_, err := c.GetUsers(ctx)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusOnline, f.status(t))
}

func TestWithSession_ConnectivityFailureMarksOffline(t *testing.T) {
	f := newFixture(t)
	ctrl := gomock.NewController(t)
	client := terminal.NewMockClient(ctrl)
	dialer := terminal.NewMockDialer(ctrl)

	dialer.EXPECT().Dial(gomock.Any(), gomock.Any()).Return(client, nil)
	client.EXPECT().GetAttendanceEvents(gomock.Any()).Return(nil, io.ErrUnexpectedEOF)
	client.EXPECT().Disconnect().Return(nil)

	m := NewManager(dialer, lock.NewLocal(), f.recorder, Options{}, nil)
	err := m.WithSession(context.Background(), f.device, func(ctx context.Context, c terminal.Client) error {
		_, err := c.GetAttendanceEvents(ctx)
		return err
	})

	var ce *terminal.ConnectionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, terminal.KindUnreachable, ce.Kind)
	assert.Equal(t, f.device.ID, ce.DeviceID)
	assert.Equal(t, models.StatusOffline, f.status(t))
}

func TestWithSession_DialFailure(t *testing.T) {
	f := newFixture(t)
	ctrl := gomock.NewController(t)
	dialer := terminal.NewMockDialer(ctrl)
	dialer.EXPECT().Dial(gomock.Any(), gomock.Any()).Return(nil, errors.New("handshake rejected"))

	m := NewManager(dialer, lock.NewLocal(), f.recorder, Options{}, nil)
	called := false
	err := m.WithSession(context.Background(), f.device, func(ctx context.Context, c terminal.Client) error {
		called = true
		return nil
	})

	assert.False(t, called)
	assert.ErrorIs(t, err, terminal.ErrUnreachable)
	assert.Equal(t, models.StatusOffline, f.status(t))
}

func TestWithSession_DialTimeoutBounded(t *testing.T) {
	f := newFixture(t)
	ctrl := gomock.NewController(t)
	dialer := terminal.NewMockDialer(ctrl)
	dialer.EXPECT().Dial(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ terminal.Endpoint) (terminal.Client, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})

	m := NewManager(dialer, lock.NewLocal(), f.recorder, Options{ConnectTimeout: 20 * time.Millisecond}, nil)
	start := time.Now()
	err := m.WithSession(context.Background(), f.device, func(context.Context, terminal.Client) error { return nil })

	assert.ErrorIs(t, err, terminal.ErrTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, models.StatusOffline, f.status(t))
}

func TestWithSession_PassThroughErrors(t *testing.T) {
	f := newFixture(t)
	ctrl := gomock.NewController(t)
	client := terminal.NewMockClient(ctrl)
	dialer := terminal.NewMockDialer(ctrl)
	dialer.EXPECT().Dial(gomock.Any(), gomock.Any()).Return(client, nil).Times(2)
	client.EXPECT().Disconnect().Return(nil).Times(2)

	m := NewManager(dialer, lock.NewLocal(), f.recorder, Options{}, nil)

	verr := &terminal.ValidationError{ExternalUserID: "7", Reason: "bad"}
	err := m.WithSession(context.Background(), f.device, func(context.Context, terminal.Client) error { return verr })
	assert.Same(t, verr, err)

	storeErr := errors.New("database is locked")
	err = m.WithSession(context.Background(), f.device, func(context.Context, terminal.Client) error { return storeErr })
	assert.Same(t, storeErr, err)

	assert.Equal(t, models.StatusOnline, f.status(t), "non-connectivity errors keep the device online")
}

func TestWithSession_PanicStillDisconnects(t *testing.T) {
	f := newFixture(t)
	ctrl := gomock.NewController(t)
	client := terminal.NewMockClient(ctrl)
	dialer := terminal.NewMockDialer(ctrl)
	dialer.EXPECT().Dial(gomock.Any(), gomock.Any()).Return(client, nil)
	client.EXPECT().Disconnect().Return(nil).Times(1)

	locker := lock.NewLocal()
	m := NewManager(dialer, locker, f.recorder, Options{}, nil)
	assert.Panics(t, func() {
		_ = m.WithSession(context.Background(), f.device, func(context.Context, terminal.Client) error { panic("boom") })
	})

	// lock was released too
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlock, err := locker.Lock(ctx, f.device.ID)
	require.NoError(t, err)
	unlock()
}

func TestWithSession_SerializesSameDevice(t *testing.T) {
	f := newFixture(t)
	fleet := sim.NewFleet(false)
	term := fleet.Add(f.device.Address, f.device.Port)
	term.SetLatency(5 * time.Millisecond)

	m := NewManager(fleet, lock.NewLocal(), f.recorder, Options{}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.WithSession(context.Background(), f.device, func(ctx context.Context, c terminal.Client) error {
				_, err := c.GetUsers(ctx)
				return err
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	st := term.Stats()
	assert.Equal(t, 6, st.Sessions)
	assert.Equal(t, 1, st.MaxConcurrent)
}

func TestWithSession_SessionTimeout(t *testing.T) {
	f := newFixture(t)
	fleet := sim.NewFleet(false)
	fleet.Add(f.device.Address, f.device.Port).SetLatency(time.Second)

	m := NewManager(fleet, lock.NewLocal(), f.recorder, Options{SessionTimeout: 30 * time.Millisecond}, nil)
	err := m.WithSession(context.Background(), f.device, func(ctx context.Context, c terminal.Client) error {
		_, err := c.GetUsers(ctx)
		return err
	})
	assert.ErrorIs(t, err, terminal.ErrTimeout)
	assert.Equal(t, models.StatusOffline, f.status(t))
}

func TestMarkOnline(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.recorder.MarkOffline(context.Background(), f.device.ID))

	m := NewManager(sim.NewFleet(true), lock.NewLocal(), f.recorder, Options{}, nil)
	require.NoError(t, m.MarkOnline(context.Background(), f.device.ID))
	assert.Equal(t, models.StatusOnline, f.status(t))
}

func TestWithSession_QueueTimeDoesNotCountAgainstBudget(t *testing.T) {
	f := newFixture(t)
	fleet := sim.NewFleet(false)
	fleet.Add(f.device.Address, f.device.Port).SetLatency(60 * time.Millisecond)

	m := NewManager(fleet, lock.NewLocal(), f.recorder, Options{SessionTimeout: 100 * time.Millisecond}, nil)

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			errs <- m.WithSession(context.Background(), f.device, func(ctx context.Context, c terminal.Client) error {
				_, err := c.GetUsers(ctx)
				return err
			})
		}()
	}
	for i := 0; i < 2; i++ {
		assert.NoError(t, <-errs)
	}
	assert.Equal(t, models.StatusOnline, f.status(t))
}

func TestWithSession_LockWaitKeepsStatus(t *testing.T) {
	f := newFixture(t)
	ctrl := gomock.NewController(t)
	dialer := terminal.NewMockDialer(ctrl)

	locker := lock.NewLocal()
	unlock, err := locker.Lock(context.Background(), f.device.ID)
	require.NoError(t, err)
	defer unlock()

	m := NewManager(dialer, locker, f.recorder, Options{LockWait: 20 * time.Millisecond}, nil)
	err = m.WithSession(context.Background(), f.device, func(context.Context, terminal.Client) error { return nil })

	assert.ErrorIs(t, err, ErrDeviceBusy)
	assert.False(t, terminal.IsConnectivity(err))
	assert.Equal(t, models.StatusOnline, f.status(t))
}
