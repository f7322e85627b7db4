package bridge

import (
	"context"
	"errors"
	"fmt"
	mqttlib "github.com/eclipse/paho.mqtt.golang"
	"github.com/shimmeringbee/logwrap"
	"time"
)

var ErrPublishFailed = errors.New("mqtt publish failed")

const (
	mqttConnectTimeout = 10 * time.Second
	mqttPublishTimeout = 5 * time.Second
	mqttDisconnectWait = 250
)

// Publisher sends a payload to a fully qualified topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

type MQTTPublisher struct {
	client mqttlib.Client
	cfg    MQTTConfig
	logger logwrap.Logger
}

func statusTopic(root string) string {
	return fmt.Sprintf("%s/bridge/state", root)
}

// NewMQTTPublisher connects to the broker, the bridge state topic is retained as online until the client
// disconnects or the broker fires the will.
func NewMQTTPublisher(ctx context.Context, cfg MQTTConfig, l logwrap.Logger) (*MQTTPublisher, error) {
	p := &MQTTPublisher{cfg: cfg, logger: l}

	opts := mqttlib.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(time.Second)
	opts.SetOrderMatters(false)
	opts.SetWill(statusTopic(cfg.RootTopic), "offline", cfg.QoS, true)
	opts.SetOnConnectHandler(func(c mqttlib.Client) {
		l.LogInfo(ctx, "Connected to MQTT broker.", logwrap.Datum("Broker", cfg.Broker))
		c.Publish(statusTopic(cfg.RootTopic), cfg.QoS, true, "online")
	})
	opts.SetConnectionLostHandler(func(_ mqttlib.Client, err error) {
		l.LogWarn(ctx, "Lost connection to MQTT broker.", logwrap.Err(err))
	})

	p.client = mqttlib.NewClient(opts)

	token := p.client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("mqtt connect: timeout after %v", mqttConnectTimeout)
	}

	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}

	return p, nil
}

func (p *MQTTPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	token := p.client.Publish(topic, p.cfg.QoS, false, payload)

	timeout := mqttPublishTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%w: %s: timeout", ErrPublishFailed, topic)
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
	}

	return nil
}

func (p *MQTTPublisher) Close() {
	if p.client.IsConnected() {
		p.client.Publish(statusTopic(p.cfg.RootTopic), p.cfg.QoS, true, "offline").WaitTimeout(mqttPublishTimeout)
	}

	p.client.Disconnect(mqttDisconnectWait)
}

var _ Publisher = (*MQTTPublisher)(nil)
