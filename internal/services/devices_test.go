package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/srbio/internal/common"
	"github.com/dmitrijs2005/srbio/internal/models"
	"github.com/dmitrijs2005/srbio/internal/terminal"
)

func TestDeviceService_CreateValidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.devices.Create(ctx, &models.Device{Name: "  Gate  ", Address: " 192.168.1.201 "})
	require.NoError(t, err)
	assert.Equal(t, "Gate", d.Name)
	assert.Equal(t, "192.168.1.201", d.Address)
	assert.Equal(t, common.DefaultTerminalPort, d.Port)
	assert.Equal(t, models.StatusOffline, d.Status)

	bad := []models.Device{
		{Address: "10.0.0.1"},
		{Name: "x"},
		{Name: "x", Address: "http://10.0.0.1/"},
		{Name: "x", Address: "10.0.0.1", Port: 70000},
	}
	for _, b := range bad {
		b := b
		_, err := f.devices.Create(ctx, &b)
		assert.ErrorIs(t, err, common.ErrorInvalidArgument, "%+v", b)
	}
}

func TestDeviceService_UpdateAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d, _ := f.addDevice(t, "Gate", "10.0.0.1")

	d.Name = "Main gate"
	d.Port = 4371
	got, err := f.devices.Update(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, "Main gate", got.Name)
	assert.Equal(t, 4371, got.Port)

	_, err = f.devices.Update(ctx, &models.Device{ID: "missing", Name: "x", Address: "10.0.0.9"})
	assert.ErrorIs(t, err, common.ErrorNotFound)

	require.NoError(t, f.devices.Delete(ctx, d.ID))
	_, err = f.devices.Get(ctx, d.ID)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	assert.ErrorIs(t, f.devices.Delete(ctx, d.ID), common.ErrorNotFound)
}

func TestDeviceService_Info(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d, term := f.addDevice(t, "Gate", "10.0.0.1")

	clock := time.Date(2026, 3, 2, 9, 30, 15, 0, time.UTC)
	term.SetClock(func() time.Time { return clock })
	term.SetInfo(terminal.Info{Model: "iFace 702", Firmware: "Ver 6.60", SerialNumber: "AB123", Platform: "ZLM60", MACAddress: "00:17:61:aa:bb:cc"})
	term.PutUser(terminal.RawUser{Slot: 1, UserID: "1"})
	term.PutUser(terminal.RawUser{Slot: 2, UserID: "2"})

	out, err := f.devices.Info(ctx, d.ID)
	require.NoError(t, err)
	require.True(t, out.Success, out.Message)

	diag, ok := out.Data.(DeviceDiagnostics)
	require.True(t, ok)
	require.NotNil(t, diag.DeviceTime)
	assert.True(t, diag.DeviceTime.Equal(clock))
	assert.Equal(t, "Ver 6.60", diag.Firmware)
	assert.Equal(t, 2, diag.Capacity.UserCount)
	assert.Equal(t, 3000, diag.Capacity.UserCapacity)
	assert.Equal(t, 100000, diag.Capacity.LogCapacity)
	assert.Equal(t, 5000, diag.Capacity.FingerCapacity)
	assert.Equal(t, 500, diag.Capacity.FaceCapacity)

	stored, err := f.devices.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "iFace 702", stored.Model)
	assert.Equal(t, "AB123", stored.SerialNumber)
	assert.Equal(t, "00:17:61:aa:bb:cc", stored.MACAddress)
	assert.Equal(t, models.StatusOnline, stored.Status)
}

func TestDeviceService_InfoFallbacks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d, term := f.addDevice(t, "Gate", "10.0.0.1")
	term.SetCapabilities(terminal.CapAttendance)

	out, err := f.devices.Info(ctx, d.ID)
	require.NoError(t, err)
	require.True(t, out.Success, out.Message)
	diag := out.Data.(DeviceDiagnostics)
	assert.Nil(t, diag.DeviceTime)
	assert.Equal(t, terminal.Unknown, diag.Firmware)

	stored, err := f.devices.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Firmware, "unknown values are not persisted")
}

func TestDeviceService_InfoAbsorbsUnsupportedCommands(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d, term := f.addDevice(t, "Gate", "10.0.0.1")
	term.SetInfo(terminal.Info{Model: "iFace 702", Firmware: "Ver 6.60"})
	unsupported := &terminal.ConnectionError{Kind: terminal.KindProtocolUnsupported}
	term.FailOn("GetTime", unsupported)
	term.FailOn("GetUsers", unsupported)

	out, err := f.devices.Info(ctx, d.ID)
	require.NoError(t, err)
	require.True(t, out.Success, out.Message)
	diag := out.Data.(DeviceDiagnostics)
	assert.Nil(t, diag.DeviceTime)
	assert.Equal(t, "Ver 6.60", diag.Firmware)

	stored, err := f.devices.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOnline, stored.Status)
}

func TestDeviceService_InfoUnreachable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d, term := f.addDevice(t, "Gate", "10.0.0.1")
	term.SetReachable(false)

	out, err := f.devices.Info(ctx, d.ID)
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Contains(t, out.Message, "unreachable")

	_, err = f.devices.Info(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestDeviceService_TestConnectionAndHealth(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, _ := f.addDevice(t, "A", "10.0.0.1")
	b, _ := f.addDevice(t, "B", "10.0.0.2")
	f.prober.down["10.0.0.2"] = true

	out, err := f.devices.TestConnection(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Contains(t, out.Message, "reachable in")

	out, err = f.devices.TestConnection(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, out.Success)

	hs, err := f.devices.Health(ctx)
	require.NoError(t, err)
	require.Len(t, hs, 2)
	assert.Equal(t, "A", hs[0].Name)
	assert.Equal(t, models.StatusOnline, hs[0].Status)
	require.NotNil(t, hs[0].Probe)
	assert.True(t, hs[0].Probe.Online)
	assert.Equal(t, models.StatusOffline, hs[1].Status)
}
