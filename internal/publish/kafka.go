package publish

import (
	"context"

	"github.com/segmentio/kafka-go"

	"github.com/dmitrijs2005/srbio/internal/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka writes every event to one topic keyed by device id, so events of
// a device stay ordered within a partition.
type Kafka struct {
	w messageWriter
}

func NewKafka(w messageWriter) *Kafka {
	return &Kafka{w: w}
}

func NewKafkaWriter(brokers []string, topic string) *Kafka {
	return NewKafka(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	})
}

func (p *Kafka) write(ctx context.Context, kind, deviceID string, v any) error {
	b, err := encode(v)
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, kafka.Message{
		Key:     []byte(deviceID),
		Value:   b,
		Headers: []kafka.Header{{Key: "type", Value: []byte(kind)}},
	})
}

func (p *Kafka) PublishAttendance(ctx context.Context, e *models.AttendanceEvent) error {
	return p.write(ctx, "attendance", e.DeviceID, e)
}

func (p *Kafka) PublishStatus(ctx context.Context, change models.StatusChange) error {
	return p.write(ctx, "status", change.DeviceID, change)
}

func (p *Kafka) Close() error {
	return p.w.Close()
}
