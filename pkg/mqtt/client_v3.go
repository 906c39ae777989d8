package mqtt

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pahov3 "github.com/eclipse/paho.mqtt.golang"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/autopeer-io/fleetpeer/pkg/log"
)

// v3Client is the MQTT 3.1.1 implementation, for brokers such as the
// RabbitMQ MQTT plugin that do not speak v5.
type v3Client struct {
	cfg    *ClientConfig
	client pahov3.Client

	state    stateTracker
	connects atomic.Int64

	subscriptions sync.Map
}

var _ Client = (*v3Client)(nil)

func newV3Client(cfg *ClientConfig) *v3Client {
	c := &v3Client{cfg: cfg}
	c.state.onChange = cfg.OnStateChange
	return c
}

func (c *v3Client) Start(ctx context.Context) error {
	opts := pahov3.NewClientOptions().
		AddBroker(c.cfg.BrokerURL).
		SetClientID(c.cfg.ClientID).
		SetUsername(c.cfg.Username).
		SetPassword(c.cfg.Password).
		SetProtocolVersion(ProtocolV311).
		SetCleanSession(c.cfg.CleanStart).
		SetKeepAlive(time.Duration(c.cfg.KeepAlive) * time.Second).
		SetConnectTimeout(c.cfg.ConnectTimeout).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(c.cfg.ReconnectBackoff).
		SetMaxReconnectInterval(c.cfg.ReconnectBackoff).
		SetOrderMatters(true).
		SetAutoAckDisabled(c.cfg.ManualAck).
		SetTLSConfig(&tls.Config{InsecureSkipVerify: c.cfg.InsecureSkipVerify}).
		SetDefaultPublishHandler(c.router).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost).
		SetReconnectingHandler(func(pahov3.Client, *pahov3.ClientOptions) {
			c.state.set(StateConnecting)
		})

	if w := c.cfg.Will; w != nil {
		opts.SetBinaryWill(w.Topic, w.Payload, w.QoS, w.Retain)
	}

	if c.cfg.Debug {
		logger := log.WithName("paho-v3")
		pahov3.DEBUG = log.NewPrintfLogger(logger, false)
		pahov3.ERROR = log.NewPrintfLogger(logger, true)
		pahov3.CRITICAL = log.NewPrintfLogger(logger, true)
	}

	log.Info("Starting MQTT Client", "broker", c.cfg.BrokerURL, "clientID", c.cfg.ClientID, "protocol", ProtocolV311)

	c.state.set(StateConnecting)
	c.client = pahov3.NewClient(opts)

	// With connect retry enabled the token only completes once connected, so
	// it is not waited on here.
	_ = c.client.Connect()
	return nil
}

func (c *v3Client) Disconnect(ctx context.Context) {
	if c.client == nil {
		return
	}
	quiesce := uint(250)
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d > 0 && d < 250*time.Millisecond {
			quiesce = uint(d.Milliseconds())
		}
	}
	c.client.Disconnect(quiesce)
	c.state.set(StateDisconnected)
	log.Info("MQTT Client disconnected")
}

func (c *v3Client) Publish(ctx context.Context, topic string, qos byte, retain bool, payload []byte) error {
	if c.client == nil {
		return fmt.Errorf("client not started")
	}
	return waitToken(ctx, c.client.Publish(topic, qos, retain, payload))
}

func (c *v3Client) Subscribe(ctx context.Context, topic string, qos byte, handler MessageHandler) error {
	if c.client == nil {
		return fmt.Errorf("client not started")
	}

	c.subscriptions.Store(topic, subscriptionEntry{topic: topic, qos: qos, handler: handler})

	if err := waitToken(ctx, c.client.Subscribe(topic, qos, nil)); err != nil {
		return fmt.Errorf("failed to send subscription packet: %w", err)
	}

	if c.IsConnected() {
		c.state.set(StateConsuming)
	}
	log.Info("Subscribed to topic", "topic", topic, "qos", qos)
	return nil
}

func (c *v3Client) Unsubscribe(ctx context.Context, topic string) error {
	if c.client == nil {
		return fmt.Errorf("client not started")
	}
	c.subscriptions.Delete(topic)
	return waitToken(ctx, c.client.Unsubscribe(topic))
}

func (c *v3Client) AwaitConnection(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("client not started")
	}
	return wait.PollUntilContextCancel(ctx, 100*time.Millisecond, true, func(context.Context) (bool, error) {
		return c.IsConnected(), nil
	})
}

func (c *v3Client) IsConnected() bool {
	s := c.state.get()
	return s == StateConnected || s == StateConsuming
}

func (c *v3Client) State() ConnectionState {
	return c.state.get()
}

// onConnect runs on its own goroutine inside paho, so waiting on tokens is safe.
func (c *v3Client) onConnect(client pahov3.Client) {
	first := c.connects.Add(1) == 1
	log.Info("MQTT Connection established", "first", first)
	c.state.set(StateConnected)

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ConnectTimeout)
	defer cancel()

	restored, failed := 0, 0
	c.subscriptions.Range(func(key, value any) bool {
		entry := value.(subscriptionEntry)
		log.Info("Re-subscribing", "topic", entry.topic)
		if err := waitToken(ctx, client.Subscribe(entry.topic, entry.qos, nil)); err != nil {
			failed++
			log.Error(err, "Failed to re-subscribe", "topic", entry.topic)
			return true
		}
		restored++
		return true
	})

	if restored > 0 && failed == 0 {
		c.state.set(StateConsuming)
	}

	if c.cfg.OnConnectionUp != nil {
		c.cfg.OnConnectionUp(first)
	}
}

func (c *v3Client) onConnectionLost(_ pahov3.Client, err error) {
	c.state.set(StateConnecting)
	log.Error(err, "MQTT Connection lost, reconnecting...")
}

func (c *v3Client) router(_ pahov3.Client, m pahov3.Message) {
	var ack func() error
	if c.cfg.ManualAck && m.Qos() > 0 {
		ack = func() error {
			m.Ack()
			return nil
		}
	}
	msg := NewMessage(m.Topic(), m.Payload(), m.Qos(), ack)
	msg.Duplicate = m.Duplicate()

	if !dispatch(&c.subscriptions, msg) {
		log.Debug("Received message on unhandled topic", "topic", m.Topic())
		_ = msg.Ack()
	}
}

func waitToken(ctx context.Context, token pahov3.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
