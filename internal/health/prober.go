package health

import (
	"context"
	"errors"
	"net"
	"strconv"
	"syscall"
	"time"
)

// Prober checks whether a host answers on a TCP port without speaking the
// terminal protocol.
type Prober interface {
	Probe(ctx context.Context, address string, port int) (time.Duration, error)
}

// TCPProber connects and immediately drops the connection.
type TCPProber struct {
	Timeout time.Duration
	dial    func(ctx context.Context, network, address string) (net.Conn, error)
}

func NewTCPProber(timeout time.Duration) *TCPProber {
	d := &net.Dialer{}
	return &TCPProber{Timeout: timeout, dial: d.DialContext}
}

// Probe returns the round-trip time of the connect. A refused connection
// means the host answered, so it is reported as reachable.
func (p *TCPProber) Probe(ctx context.Context, address string, port int) (time.Duration, error) {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	start := time.Now()
	conn, err := p.dial(ctx, "tcp", net.JoinHostPort(address, strconv.Itoa(port)))
	rtt := time.Since(start)
	if err != nil {
		if errors.Is(err, syscall.ECONNREFUSED) {
			return rtt, nil
		}
		return 0, err
	}
	_ = conn.Close()
	return rtt, nil
}
