package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/dmitrijs2005/srbio/internal/models"
)

type natsConn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// NATS publishes on core subjects <prefix>.attendance.<device> and
// <prefix>.status.<device>.
type NATS struct {
	conn   natsConn
	prefix string
}

func NewNATS(conn natsConn, prefix string) *NATS {
	return &NATS{conn: conn, prefix: prefix}
}

// ConnectNATS dials the server at url.
func ConnectNATS(url, prefix string) (*NATS, error) {
	nc, err := nats.Connect(url,
		nats.Name("srbio"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return NewNATS(nc, prefix), nil
}

func (p *NATS) subject(kind, deviceID string) string {
	return p.prefix + "." + kind + "." + deviceID
}

func (p *NATS) PublishAttendance(_ context.Context, e *models.AttendanceEvent) error {
	b, err := encode(e)
	if err != nil {
		return err
	}
	return p.conn.Publish(p.subject("attendance", e.DeviceID), b)
}

func (p *NATS) PublishStatus(_ context.Context, change models.StatusChange) error {
	b, err := encode(change)
	if err != nil {
		return err
	}
	return p.conn.Publish(p.subject("status", change.DeviceID), b)
}

func (p *NATS) Close() error {
	return p.conn.Drain()
}
