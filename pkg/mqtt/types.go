package mqtt

import (
	"context"
	"sync"
)

// MessageHandler processes a received message. Handlers are invoked in
// arrival order on the client's receive path and must hand long work off.
type MessageHandler func(ctx context.Context, msg *Message)

// Message is a received PUBLISH.
type Message struct {
	Topic     string
	Payload   []byte
	QoS       byte
	Duplicate bool

	once   sync.Once
	ack    func() error
	ackErr error
}

// NewMessage builds a message. ack may be nil when the transport acknowledges
// on its own.
func NewMessage(topic string, payload []byte, qos byte, ack func() error) *Message {
	return &Message{Topic: topic, Payload: payload, QoS: qos, ack: ack}
}

// Ack acknowledges the message to the broker. It is a no-op unless the client
// runs with manual acknowledgement, and only the first call has an effect.
func (m *Message) Ack() error {
	m.once.Do(func() {
		if m.ack != nil {
			m.ackErr = m.ack()
		}
	})
	return m.ackErr
}

// Client defines the interface for a generic MQTT client.
// It abstracts the underlying paho implementation details.
type Client interface {
	// Start initiates the connection to the broker.
	// It is non-blocking and returns immediately. Use AwaitConnection to wait.
	Start(ctx context.Context) error

	// Disconnect cleanly closes the connection.
	Disconnect(ctx context.Context)

	// Publish sends a message to the specified topic.
	Publish(ctx context.Context, topic string, qos byte, retain bool, payload []byte) error

	// Subscribe registers a handler for a specific topic filter.
	// Subscriptions are keyed by filter: subscribing the same filter again
	// replaces the handler, and every registered filter is re-subscribed
	// after a reconnect.
	Subscribe(ctx context.Context, topic string, qos byte, handler MessageHandler) error

	// Unsubscribe removes the handler and sends an UNSUBSCRIBE packet.
	Unsubscribe(ctx context.Context, topic string) error

	// AwaitConnection blocks until the client is connected to the broker.
	AwaitConnection(ctx context.Context) error

	// IsConnected returns true if the client is currently connected.
	IsConnected() bool

	// State returns the connection lifecycle state.
	State() ConnectionState
}
