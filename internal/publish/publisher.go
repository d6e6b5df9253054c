// Package publish forwards sync and status events to a message broker.
package publish

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/srbio/internal/common"
	"github.com/dmitrijs2005/srbio/internal/logging"
	"github.com/dmitrijs2005/srbio/internal/models"
)

// Publisher sends events downstream. Implementations are safe for
// concurrent use.
type Publisher interface {
	PublishAttendance(ctx context.Context, e *models.AttendanceEvent) error
	PublishStatus(ctx context.Context, change models.StatusChange) error
	Close() error
}

// Nop drops every event.
type Nop struct{}

func (Nop) PublishAttendance(context.Context, *models.AttendanceEvent) error { return nil }
func (Nop) PublishStatus(context.Context, models.StatusChange) error         { return nil }
func (Nop) Close() error                                                     { return nil }

func encode(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event: %w", err)
	}
	return b, nil
}

// StatusNotifier forwards device status changes to a Publisher. Failures
// are logged only.
type StatusNotifier struct {
	pub    Publisher
	logger logging.Logger
}

func NewStatusNotifier(pub Publisher, logger logging.Logger) *StatusNotifier {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StatusNotifier{pub: pub, logger: logger.With("module", "publish")}
}

func (n *StatusNotifier) DeviceStatusChanged(ctx context.Context, change models.StatusChange) {
	if err := n.pub.PublishStatus(ctx, change); err != nil {
		n.logger.Warn(ctx, "failed to publish status change", "device_id", change.DeviceID, "err", err)
	}
}

// Options selects and configures a backend.
type Options struct {
	Backend      string // none, nats, kafka or mqtt
	NATSURL      string
	KafkaBrokers []string
	MQTTBroker   string
	Topic        string
}

// Open connects the configured backend.
func Open(opts Options) (Publisher, error) {
	switch opts.Backend {
	case "", "none":
		return Nop{}, nil
	case "nats":
		return ConnectNATS(opts.NATSURL, opts.Topic)
	case "kafka":
		if len(opts.KafkaBrokers) == 0 {
			return nil, fmt.Errorf("kafka publisher needs at least one broker: %w", common.ErrorInvalidArgument)
		}
		return NewKafkaWriter(opts.KafkaBrokers, opts.Topic), nil
	case "mqtt":
		return ConnectMQTT(opts.MQTTBroker, opts.Topic)
	default:
		return nil, fmt.Errorf("unknown publisher %q: %w", opts.Backend, common.ErrorInvalidArgument)
	}
}
