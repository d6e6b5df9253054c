package terminal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Capabilities is the set of commands a session supports, negotiated once
// at dial time.
type Capabilities uint32

const (
	CapUsers Capabilities = 1 << iota
	CapAttendance
	CapSetUser
	CapClearAttendance
	CapInfo
	CapTime

	CapAll = CapUsers | CapAttendance | CapSetUser | CapClearAttendance | CapInfo | CapTime
)

var capNames = []struct {
	c    Capabilities
	name string
}{
	{CapUsers, "users"},
	{CapAttendance, "attendance"},
	{CapSetUser, "set_user"},
	{CapClearAttendance, "clear_attendance"},
	{CapInfo, "info"},
	{CapTime, "time"},
}

// Has reports whether every bit of need is present.
func (c Capabilities) Has(need Capabilities) bool {
	return c&need == need
}

func (c Capabilities) String() string {
	var parts []string
	for _, n := range capNames {
		if c.Has(n.c) {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Require fails with a ProtocolUnsupported ConnectionError when the client
// lacks any capability in need.
func Require(c Client, need Capabilities) error {
	have := c.Capabilities()
	if have.Has(need) {
		return nil
	}
	return &ConnectionError{
		Kind: KindProtocolUnsupported,
		Err:  fmt.Errorf("missing capability %s", need&^have),
	}
}

// ReadInfo returns GetInfo, or UnknownInfo when the terminal lacks CapInfo
// or rejects the command as unsupported.
func ReadInfo(ctx context.Context, c Client) (Info, error) {
	if !c.Capabilities().Has(CapInfo) {
		return UnknownInfo(), nil
	}
	info, err := c.GetInfo(ctx)
	if Unsupported(err) {
		return UnknownInfo(), nil
	}
	return info, err
}

// ReadTime returns the terminal clock, or the zero time when the terminal
// lacks CapTime or rejects the command as unsupported.
func ReadTime(ctx context.Context, c Client) (time.Time, error) {
	if !c.Capabilities().Has(CapTime) {
		return time.Time{}, nil
	}
	ts, err := c.GetTime(ctx)
	if Unsupported(err) {
		return time.Time{}, nil
	}
	return ts, err
}

// Unsupported reports whether err says the terminal does not implement a
// command.
func Unsupported(err error) bool {
	return err != nil && errors.Is(err, ErrProtocolUnsupported)
}
