package publish

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/dmitrijs2005/srbio/internal/models"
)

const mqttQoS = 1

type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTT publishes with QoS 1 on <prefix>/<device>/attendance and
// <prefix>/<device>/status. Status messages are retained.
type MQTT struct {
	client  mqttClient
	prefix  string
	timeout time.Duration
}

func NewMQTT(client mqttClient, prefix string) *MQTT {
	return &MQTT{client: client, prefix: prefix, timeout: 5 * time.Second}
}

// ConnectMQTT connects to broker, e.g. tcp://127.0.0.1:1883.
func ConnectMQTT(broker, prefix string) (*MQTT, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(fmt.Sprintf("srbio-%d", time.Now().UnixNano()))
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetryInterval(5 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return NewMQTT(client, prefix), nil
}

func (p *MQTT) publish(ctx context.Context, topic string, retained bool, v any) error {
	b, err := encode(v)
	if err != nil {
		return err
	}
	token := p.client.Publish(topic, mqttQoS, retained, b)

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("mqtt publish to %s timed out", topic)
	}
}

func (p *MQTT) PublishAttendance(ctx context.Context, e *models.AttendanceEvent) error {
	return p.publish(ctx, p.prefix+"/"+e.DeviceID+"/attendance", false, e)
}

func (p *MQTT) PublishStatus(ctx context.Context, change models.StatusChange) error {
	return p.publish(ctx, p.prefix+"/"+change.DeviceID+"/status", true, change)
}

func (p *MQTT) Close() error {
	p.client.Disconnect(250)
	return nil
}
