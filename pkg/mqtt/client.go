package mqtt

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/autopeer-io/fleetpeer/pkg/log"
)

// pahoClient is the MQTT v5 implementation built on autopaho.
type pahoClient struct {
	cfg *ClientConfig
	cm  *autopaho.ConnectionManager

	state    stateTracker
	connects atomic.Int64

	// subscriptions holds the registered handlers.
	// Key: topic filter (string), Value: subscriptionEntry
	subscriptions sync.Map
}

type subscriptionEntry struct {
	topic   string
	qos     byte
	handler MessageHandler
}

var _ Client = (*pahoClient)(nil)

func newV5Client(cfg *ClientConfig) *pahoClient {
	c := &pahoClient{cfg: cfg}
	c.state.onChange = cfg.OnStateChange
	return c
}

func (c *pahoClient) Start(ctx context.Context) error {
	brokerURL, _ := url.Parse(c.cfg.BrokerURL) // Already validated

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{brokerURL},
		KeepAlive:                     c.cfg.KeepAlive,
		CleanStartOnInitialConnection: c.cfg.CleanStart,
		SessionExpiryInterval:         c.cfg.SessionExpiry,
		ReconnectBackoff:              autopaho.NewConstantBackoff(c.cfg.ReconnectBackoff),
		ConnectTimeout:                c.cfg.ConnectTimeout,
		ConnectUsername:               c.cfg.Username,
		ConnectPassword:               []byte(c.cfg.Password),
		TlsCfg: &tls.Config{
			InsecureSkipVerify: c.cfg.InsecureSkipVerify,
		},
		WillMessage: c.willMessage(),
		ClientConfig: paho.ClientConfig{
			ClientID:                   c.cfg.ClientID,
			EnableManualAcknowledgment: c.cfg.ManualAck,
			OnClientError:              c.onClientError,
			OnServerDisconnect:         c.onServerDisconnect,
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				c.router,
			},
		},
		OnConnectionUp: c.onConnectionUp,
		OnConnectError: c.onConnectError,
	}

	if c.cfg.Debug {
		logger := log.WithName("autopaho")
		pahoCfg.Debug = log.NewPrintfLogger(logger, false)
		pahoCfg.Errors = log.NewPrintfLogger(logger, true)
		pahoCfg.PahoDebug = log.NewPrintfLogger(logger.WithName("paho"), false)
		pahoCfg.PahoErrors = log.NewPrintfLogger(logger.WithName("paho"), true)
	}

	log.Info("Starting MQTT Client", "broker", c.cfg.BrokerURL, "clientID", c.cfg.ClientID, "protocol", ProtocolV5)

	c.state.set(StateConnecting)
	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		c.state.set(StateDisconnected)
		return err
	}
	c.cm = cm
	return nil
}

func (c *pahoClient) Disconnect(ctx context.Context) {
	if c.cm != nil {
		_ = c.cm.Disconnect(ctx)
		c.state.set(StateDisconnected)
		log.Info("MQTT Client disconnected")
	}
}

func (c *pahoClient) Publish(ctx context.Context, topic string, qos byte, retain bool, payload []byte) error {
	if c.cm == nil {
		return fmt.Errorf("client not started")
	}

	_, err := c.cm.Publish(ctx, &paho.Publish{
		Topic:   topic,
		QoS:     qos,
		Retain:  retain,
		Payload: payload,
	})

	return err
}

func (c *pahoClient) Subscribe(ctx context.Context, topic string, qos byte, handler MessageHandler) error {
	if c.cm == nil {
		return fmt.Errorf("client not started")
	}

	// Stored first so that a reconnect racing with this call still restores it.
	c.subscriptions.Store(topic, subscriptionEntry{
		topic:   topic,
		qos:     qos,
		handler: handler,
	})

	_, err := c.cm.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{
			{Topic: topic, QoS: qos},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send subscription packet: %w", err)
	}

	if c.IsConnected() {
		c.state.set(StateConsuming)
	}
	log.Info("Subscribed to topic", "topic", topic, "qos", qos)
	return nil
}

func (c *pahoClient) Unsubscribe(ctx context.Context, topic string) error {
	if c.cm == nil {
		return fmt.Errorf("client not started")
	}

	c.subscriptions.Delete(topic)

	_, err := c.cm.Unsubscribe(ctx, &paho.Unsubscribe{
		Topics: []string{topic},
	})
	return err
}

func (c *pahoClient) AwaitConnection(ctx context.Context) error {
	if c.cm == nil {
		return fmt.Errorf("client not started")
	}
	return c.cm.AwaitConnection(ctx)
}

func (c *pahoClient) IsConnected() bool {
	s := c.state.get()
	return s == StateConnected || s == StateConsuming
}

func (c *pahoClient) State() ConnectionState {
	return c.state.get()
}

// --- Internal Callbacks ---

// onConnectionUp is called when the connection is established or re-established.
func (c *pahoClient) onConnectionUp(cm *autopaho.ConnectionManager, ack *paho.Connack) {
	first := c.connects.Add(1) == 1
	log.Info("MQTT Connection established", "sessionPresent", ack.SessionPresent, "first", first)
	c.state.set(StateConnected)

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ConnectTimeout)
	defer cancel()

	restored, failed := 0, 0
	c.subscriptions.Range(func(key, value any) bool {
		entry := value.(subscriptionEntry)
		log.Info("Re-subscribing", "topic", entry.topic)
		if _, err := cm.Subscribe(ctx, &paho.Subscribe{
			Subscriptions: []paho.SubscribeOptions{
				{Topic: entry.topic, QoS: entry.qos},
			},
		}); err != nil {
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

func (c *pahoClient) onConnectError(err error) {
	c.state.set(StateConnecting)
	log.Error(err, "MQTT Connection failed, retrying...")
}

func (c *pahoClient) onClientError(err error) {
	c.state.set(StateConnecting)
	log.Error(err, "MQTT Client internal error")
}

func (c *pahoClient) onServerDisconnect(d *paho.Disconnect) {
	c.state.set(StateConnecting)
	reason := ""
	if d.Properties != nil {
		reason = d.Properties.ReasonString
	}
	log.Warn("MQTT Server requested disconnect", "code", d.ReasonCode, "reason", reason)
}

// router dispatches incoming messages to the registered handlers, inline and
// in arrival order.
func (c *pahoClient) router(p paho.PublishReceived) (bool, error) {
	var ack func() error
	if c.cfg.ManualAck && p.Packet.QoS > 0 {
		ack = func() error { return p.Client.Ack(p.Packet) }
	}
	msg := NewMessage(p.Packet.Topic, p.Packet.Payload, p.Packet.QoS, ack)

	if !dispatch(&c.subscriptions, msg) {
		log.Debug("Received message on unhandled topic", "topic", p.Packet.Topic)
		if err := msg.Ack(); err != nil {
			log.Error(err, "Failed to acknowledge unhandled message", "topic", p.Packet.Topic)
		}
	}

	return true, nil
}

func (c *pahoClient) willMessage() *paho.WillMessage {
	if c.cfg.Will == nil {
		return nil
	}
	return &paho.WillMessage{
		Topic:   c.cfg.Will.Topic,
		Payload: c.cfg.Will.Payload,
		QoS:     c.cfg.Will.QoS,
		Retain:  c.cfg.Will.Retain,
	}
}
