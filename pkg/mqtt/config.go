package mqtt

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Supported MQTT protocol versions.
const (
	ProtocolV311 = 4
	ProtocolV5   = 5
)

// Will is the last-will message registered with the broker on connect.
type Will struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
}

// ClientConfig holds the configuration for creating a new MQTT Client.
type ClientConfig struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string

	// ProtocolVersion selects the implementation: 5 (default) or 4 (3.1.1).
	ProtocolVersion int

	// KeepAlive in seconds. Default is 60.
	KeepAlive uint16

	// ConnectTimeout for the initial connection. Default is 5s.
	ConnectTimeout time.Duration

	// ReconnectBackoff is the constant delay between reconnect attempts. Default is 3s.
	ReconnectBackoff time.Duration

	// CleanStart indicates whether to start a clean session.
	// Consumers that must not lose messages while offline keep it false.
	CleanStart bool

	// SessionExpiry is the MQTT v5 session expiry interval in seconds.
	SessionExpiry uint32

	// ManualAck defers acknowledgement of QoS>0 messages to Message.Ack.
	ManualAck bool

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool

	Will *Will

	// Debug routes the underlying library's debug output to the project logger.
	Debug bool

	// OnStateChange is called on every connection state transition.
	OnStateChange func(ConnectionState)

	// OnConnectionUp is called after every (re)connection once subscriptions
	// have been restored. first is true for the initial connection.
	OnConnectionUp func(first bool)
}

// setDefaultConfig applies safe default values to the configuration.
func setDefaultConfig(cfg *ClientConfig) {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}

	if cfg.KeepAlive == 0 {
		cfg.KeepAlive = 60
	}

	if cfg.ReconnectBackoff == 0 {
		cfg.ReconnectBackoff = 3 * time.Second
	}

	if cfg.ProtocolVersion == 0 {
		cfg.ProtocolVersion = ProtocolV5
	}
}

// Validate checks if the configuration is valid.
func (c *ClientConfig) Validate() error {
	if c.BrokerURL == "" {
		return errors.New("broker url is required")
	}
	u, err := url.Parse(c.BrokerURL)
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("broker url %q must include scheme and host", c.BrokerURL)
	}
	if c.ProtocolVersion != ProtocolV311 && c.ProtocolVersion != ProtocolV5 {
		return fmt.Errorf("unsupported mqtt protocol version %d", c.ProtocolVersion)
	}
	if c.Will != nil && c.Will.Topic == "" {
		return errors.New("will topic is required when a will is set")
	}
	return nil
}

// NewClient creates a new MQTT client implementing the Client interface.
func NewClient(cfg *ClientConfig) (Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("mqtt config is required")
	}

	setDefaultConfig(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mqtt config: %w", err)
	}

	if cfg.ProtocolVersion == ProtocolV311 {
		return newV3Client(cfg), nil
	}
	return newV5Client(cfg), nil
}
