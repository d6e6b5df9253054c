package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	refused := &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}
	store := errors.New("database is locked")

	tests := []struct {
		name     string
		err      error
		wantKind Kind
		wantSame bool
	}{
		{name: "dial refused", err: refused, wantKind: KindUnreachable},
		{name: "eof mid session", err: fmt.Errorf("read header: %w", io.EOF), wantKind: KindUnreachable},
		{name: "deadline", err: context.DeadlineExceeded, wantKind: KindTimeout},
		{name: "net timeout", err: timeoutErr{}, wantKind: KindTimeout},
		{name: "timeout sentinel", err: fmt.Errorf("ack: %w", ErrTimeout), wantKind: KindTimeout},
		{name: "unsupported sentinel", err: ErrProtocolUnsupported, wantKind: KindProtocolUnsupported},
		{name: "canceled passes through", err: context.Canceled, wantSame: true},
		{name: "validation passes through", err: &ValidationError{Reason: "x"}, wantSame: true},
		{name: "store error passes through", err: store, wantSame: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify("dev-1", tt.err)
			if tt.wantSame {
				assert.Same(t, tt.err, got)
				return
			}
			var ce *ConnectionError
			require.ErrorAs(t, got, &ce)
			assert.Equal(t, tt.wantKind, ce.Kind)
			assert.Equal(t, "dev-1", ce.DeviceID)
			assert.ErrorIs(t, got, tt.err, "cause stays reachable")
		})
	}

	assert.NoError(t, Classify("dev-1", nil))
}

func TestClassify_FillsDeviceID(t *testing.T) {
	orig := &ConnectionError{Kind: KindProtocolUnsupported, Err: errors.New("missing capability time")}
	got := Classify("dev-2", fmt.Errorf("info: %w", orig))

	var ce *ConnectionError
	require.ErrorAs(t, got, &ce)
	assert.Equal(t, "dev-2", ce.DeviceID)
	assert.Empty(t, orig.DeviceID, "original is not mutated")

	already := &ConnectionError{Kind: KindTimeout, DeviceID: "dev-3"}
	assert.Same(t, already, Classify("dev-9", already))
}

func TestConnectionError_IsAndMessage(t *testing.T) {
	err := &ConnectionError{Kind: KindUnreachable, DeviceID: "d1", Err: io.EOF}
	assert.ErrorIs(t, err, ErrUnreachable)
	assert.ErrorIs(t, err, io.EOF)
	assert.NotErrorIs(t, err, ErrTimeout)
	assert.Equal(t, "terminal unreachable: device d1: EOF", err.Error())

	bare := &ConnectionError{Kind: KindTimeout}
	assert.Equal(t, "terminal timeout", bare.Error())
	assert.ErrorIs(t, bare, ErrTimeout)
}

func TestIsConnectivity(t *testing.T) {
	assert.True(t, IsConnectivity(&ConnectionError{Kind: KindTimeout}))
	assert.True(t, IsConnectivity(fmt.Errorf("set user: %w", io.ErrUnexpectedEOF)))
	assert.True(t, IsConnectivity(&net.OpError{Op: "write", Err: syscall.EPIPE}))
	assert.False(t, IsConnectivity(&ConnectionError{Kind: KindProtocolUnsupported}))
	assert.False(t, IsConnectivity(errors.New("slot out of range")))
	assert.False(t, IsConnectivity(nil))
}

func TestValidationError(t *testing.T) {
	assert.Equal(t, "invalid record: empty user id", (&ValidationError{Reason: "empty user id"}).Error())
	assert.Equal(t, "invalid record for user 7: missing timestamp",
		(&ValidationError{ExternalUserID: "7", Reason: "missing timestamp"}).Error())
}
