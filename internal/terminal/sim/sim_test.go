package sim

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/srbio/internal/models"
	"github.com/dmitrijs2005/srbio/internal/terminal"
)

func TestDefaultRegistered(t *testing.T) {
	d, err := terminal.Open("sim")
	require.NoError(t, err)
	assert.Same(t, Default, d)
}

func TestFleet_DialUnknownRefused(t *testing.T) {
	f := NewFleet(false)
	_, err := f.Dial(context.Background(), terminal.Endpoint{Address: "10.0.0.1", Port: 4370})
	require.Error(t, err)
	assert.True(t, terminal.IsConnectivity(err))
}

func TestSession_RosterAndLogs(t *testing.T) {
	f := NewFleet(false)
	term := f.Add("10.0.0.1", 4370)
	term.PutUser(terminal.RawUser{Slot: 1, UserID: "7", Name: "JANE S", Privilege: 14})
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	term.AddLogs(terminal.RawAttendance{UserID: "7", Timestamp: ts})

	ctx := context.Background()
	c, err := f.Dial(ctx, terminal.Endpoint{Address: "10.0.0.1", Port: 4370})
	require.NoError(t, err)
	defer c.Disconnect()

	assert.Equal(t, terminal.CapAll, c.Capabilities())

	users, err := c.GetUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "JANE S", users[0].Name)

	require.NoError(t, c.SetUser(ctx, terminal.UserRecord{Slot: 2, ExternalUserID: "8", Name: "Bob", Role: models.RoleAdmin}))
	err = c.SetUser(ctx, terminal.UserRecord{Slot: 1, ExternalUserID: "9", Name: "Eve"})
	require.Error(t, err)
	assert.Equal(t, 1, term.Stats().SlotConflicts)
	require.Len(t, term.Users(), 2)
	assert.Equal(t, 14, term.Users()[1].Privilege)

	info, err := c.GetInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, info.UserCount)
	assert.Equal(t, 1, info.LogCount)

	logs, err := c.GetAttendanceEvents(ctx)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.NoError(t, c.ClearAttendanceBuffer(ctx))
	assert.Empty(t, term.Logs())
	assert.Equal(t, 1, term.Stats().Clears)
}

func TestSession_OverlapTracking(t *testing.T) {
	f := NewFleet(true)
	ep := terminal.Endpoint{Address: "10.0.0.2", Port: 4370}
	ctx := context.Background()

	a, err := f.Dial(ctx, ep)
	require.NoError(t, err)
	b, err := f.Dial(ctx, ep)
	require.NoError(t, err)
	require.NoError(t, a.Disconnect())
	require.NoError(t, a.Disconnect(), "double disconnect is harmless")
	require.NoError(t, b.Disconnect())

	term, ok := f.Terminal("10.0.0.2", 4370)
	require.True(t, ok)
	st := term.Stats()
	assert.Equal(t, 2, st.Sessions)
	assert.Equal(t, 2, st.MaxConcurrent)

	_, err = a.GetUsers(ctx)
	assert.True(t, terminal.IsConnectivity(err), "closed session reads fail as connectivity")
}

func TestTerminal_FailuresAndReachability(t *testing.T) {
	f := NewFleet(false)
	term := f.Add("h", 1)
	ep := terminal.Endpoint{Address: "h", Port: 1}
	ctx := context.Background()

	term.SetReachable(false)
	_, err := f.Dial(ctx, ep)
	assert.True(t, terminal.IsConnectivity(err))
	term.SetReachable(true)

	boom := errors.New("boom")
	term.FailOn("GetUsers", boom)
	c, err := f.Dial(ctx, ep)
	require.NoError(t, err)
	defer c.Disconnect()
	_, err = c.GetUsers(ctx)
	assert.ErrorIs(t, err, boom)

	term.FailOn("GetUsers", nil)
	_, err = c.GetUsers(ctx)
	assert.NoError(t, err)

	term.SetLatency(time.Second)
	cctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err = c.GetUsers(cctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFleet_Probe(t *testing.T) {
	ctx := context.Background()
	f := NewFleet(false)
	term := f.Add("h", 1)
	term.SetLatency(3 * time.Millisecond)

	rtt, err := f.Probe(ctx, "h", 1)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Millisecond, rtt)
	assert.Zero(t, term.Stats().Sessions)

	term.SetReachable(false)
	_, err = f.Probe(ctx, "h", 1)
	assert.ErrorIs(t, err, os.ErrDeadlineExceeded)

	_, err = f.Probe(ctx, "elsewhere", 1)
	assert.ErrorIs(t, err, os.ErrDeadlineExceeded)
}

func TestTerminal_ClockAndCapabilities(t *testing.T) {
	f := NewFleet(false)
	term := f.Add("h", 2)
	fixed := time.Date(2024, 3, 1, 10, 0, 0, 500, time.UTC)
	term.SetClock(func() time.Time { return fixed })
	term.SetCapabilities(terminal.CapUsers)

	c, err := f.Dial(context.Background(), terminal.Endpoint{Address: "h", Port: 2})
	require.NoError(t, err)
	defer c.Disconnect()

	assert.Equal(t, terminal.CapUsers, c.Capabilities())
	now, err := c.GetTime(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fixed.Truncate(time.Second), now)
}
