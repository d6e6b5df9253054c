package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// Kind classifies a ConnectionError.
type Kind int

const (
	KindUnreachable Kind = iota + 1
	KindTimeout
	KindProtocolUnsupported
)

var (
	ErrUnreachable         = errors.New("terminal unreachable")
	ErrTimeout             = errors.New("terminal timeout")
	ErrProtocolUnsupported = errors.New("terminal protocol unsupported")
)

func (k Kind) sentinel() error {
	switch k {
	case KindTimeout:
		return ErrTimeout
	case KindProtocolUnsupported:
		return ErrProtocolUnsupported
	default:
		return ErrUnreachable
	}
}

func (k Kind) String() string {
	switch k {
	case KindUnreachable:
		return "unreachable"
	case KindTimeout:
		return "timeout"
	case KindProtocolUnsupported:
		return "protocol_unsupported"
	default:
		return "unknown"
	}
}

// ConnectionError reports that a terminal session could not be used.
// errors.Is matches both the Kind sentinel and the wrapped cause.
type ConnectionError struct {
	Kind     Kind
	DeviceID string
	Err      error
}

func (e *ConnectionError) Error() string {
	msg := e.Kind.sentinel().Error()
	if e.DeviceID != "" {
		msg = fmt.Sprintf("%s: device %s", msg, e.DeviceID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ConnectionError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.sentinel()}
	}
	return []error{e.Kind.sentinel(), e.Err}
}

// ValidationError rejects one raw record at the boundary.
type ValidationError struct {
	ExternalUserID string
	Reason         string
}

func (e *ValidationError) Error() string {
	if e.ExternalUserID == "" {
		return "invalid record: " + e.Reason
	}
	return fmt.Sprintf("invalid record for user %s: %s", e.ExternalUserID, e.Reason)
}

// Classify turns a terminal-originated failure into a *ConnectionError
// carrying deviceID. Validation errors, cancellation and errors that do not
// look like connectivity problems come back unchanged.
func Classify(deviceID string, err error) error {
	if err == nil {
		return nil
	}

	var ce *ConnectionError
	if errors.As(err, &ce) {
		if ce.DeviceID == "" {
			cp := *ce
			cp.DeviceID = deviceID
			return &cp
		}
		return ce
	}

	var ve *ValidationError
	if errors.As(err, &ve) || errors.Is(err, context.Canceled) {
		return err
	}

	if kind, ok := kindOf(err); ok {
		return &ConnectionError{Kind: kind, DeviceID: deviceID, Err: err}
	}
	return err
}

// IsConnectivity reports whether err means the session is gone: the
// terminal is unreachable or stopped answering in time.
func IsConnectivity(err error) bool {
	var ce *ConnectionError
	if errors.As(err, &ce) {
		return ce.Kind == KindUnreachable || ce.Kind == KindTimeout
	}
	kind, ok := kindOf(err)
	return ok && kind != KindProtocolUnsupported
}

func kindOf(err error) (Kind, bool) {
	switch {
	case errors.Is(err, ErrProtocolUnsupported):
		return KindProtocolUnsupported, true
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded), errors.Is(err, syscall.ETIMEDOUT):
		return KindTimeout, true
	case errors.Is(err, ErrUnreachable):
		return KindUnreachable, true
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout, true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindUnreachable, true
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EHOSTUNREACH),
		errors.Is(err, syscall.ENETUNREACH),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF):
		return KindUnreachable, true
	}
	return 0, false
}
