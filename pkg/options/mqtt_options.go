package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/autopeer-io/fleetpeer/pkg/mqtt"
)

var _ IOptions = (*MqttOptions)(nil)

// MqttOptions contains configuration for the MQTT client.
type MqttOptions struct {
	Broker   string `json:"broker" mapstructure:"broker"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	ClientID string `json:"client-id" mapstructure:"client-id"`

	// ProtocolVersion is 5 for MQTT v5 or 4 for MQTT 3.1.1.
	ProtocolVersion int `json:"protocol-version" mapstructure:"protocol-version"`

	// Client behavior
	KeepAlive        time.Duration `json:"keep-alive" mapstructure:"keep-alive"`
	ConnectTimeout   time.Duration `json:"connect-timeout" mapstructure:"connect-timeout"`
	ReconnectBackoff time.Duration `json:"reconnect-backoff" mapstructure:"reconnect-backoff"`
	SessionExpiry    uint32        `json:"session-expiry" mapstructure:"session-expiry"`
	CleanStart       bool          `json:"clean-start" mapstructure:"clean-start"`

	// SharedGroup, when set, turns consumer subscriptions into shared ones so
	// replicas split the stream.
	SharedGroup string `json:"shared-group" mapstructure:"shared-group"`

	// InsecureSkipVerify controls whether a client verifies the server's certificate chain and host name.
	// If true, TLS accepts any certificate presented by the server and any host name in that certificate.
	// In this mode, TLS is susceptible to man-in-the-middle attacks. This should be used only for testing.
	InsecureSkipVerify bool `json:"insecure-skip-verify" mapstructure:"insecure-skip-verify"`

	// Debug routes the MQTT library's own logging to the project logger.
	Debug bool `json:"debug" mapstructure:"debug"`
}

// NewMqttOptions creates a new MqttOptions with default values.
func NewMqttOptions() *MqttOptions {
	return &MqttOptions{
		Broker:             "tcp://localhost:1883",
		Username:           "guest",
		Password:           "guest",
		ProtocolVersion:    mqtt.ProtocolV5,
		KeepAlive:          60 * time.Second,
		ConnectTimeout:     5 * time.Second,
		ReconnectBackoff:   3 * time.Second,
		SessionExpiry:      3600,
		CleanStart:         false,
		InsecureSkipVerify: false,
	}
}

// Validate is used to parse and validate the parameters entered by the user at
// the command line when the program starts.
func (o *MqttOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errors := []error{}

	if o.Broker == "" {
		errors = append(errors, fmt.Errorf("--mqtt.broker is required"))
	}
	if o.ProtocolVersion != mqtt.ProtocolV311 && o.ProtocolVersion != mqtt.ProtocolV5 {
		errors = append(errors, fmt.Errorf("--mqtt.protocol-version must be 4 or 5, got %d", o.ProtocolVersion))
	}
	if o.KeepAlive < time.Second {
		errors = append(errors, fmt.Errorf("--mqtt.keep-alive must be at least 1s"))
	}
	if o.SharedGroup != "" && o.ProtocolVersion != mqtt.ProtocolV5 {
		errors = append(errors, fmt.Errorf("--mqtt.shared-group requires protocol version 5"))
	}

	return errors
}

// AddFlags adds flags for MqttOptions to the specified FlagSet.
func (o *MqttOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Broker, "mqtt.broker", o.Broker, "The URL of the MQTT broker.")
	fs.StringVar(&o.Username, "mqtt.username", o.Username, "The username for MQTT authentication.")
	fs.StringVar(&o.Password, "mqtt.password", o.Password, "The password for MQTT authentication.")
	fs.StringVar(&o.ClientID, "mqtt.client-id", o.ClientID, "Explicit Client ID (optional, usually generated).")
	fs.IntVar(&o.ProtocolVersion, "mqtt.protocol-version", o.ProtocolVersion, "MQTT protocol version: 5, or 4 for 3.1.1 brokers.")

	fs.DurationVar(&o.KeepAlive, "mqtt.keep-alive", o.KeepAlive, "MQTT Keep Alive interval.")
	fs.DurationVar(&o.ConnectTimeout, "mqtt.connect-timeout", o.ConnectTimeout, "Timeout for establishing MQTT connection.")
	fs.DurationVar(&o.ReconnectBackoff, "mqtt.reconnect-backoff", o.ReconnectBackoff, "Delay between reconnect attempts.")
	fs.Uint32Var(&o.SessionExpiry, "mqtt.session-expiry", o.SessionExpiry, "MQTT Session Expiry Interval in seconds.")
	fs.BoolVar(&o.CleanStart, "mqtt.clean-start", o.CleanStart, "Start with a clean session instead of resuming the persistent one.")
	fs.StringVar(&o.SharedGroup, "mqtt.shared-group", o.SharedGroup, "Shared subscription group for consumers (MQTT v5 only).")
	fs.BoolVar(&o.InsecureSkipVerify, "mqtt.insecure-skip-verify", o.InsecureSkipVerify, "If true, skips the TLS certificate verification.")
	fs.BoolVar(&o.Debug, "mqtt.debug", o.Debug, "Log MQTT library internals at debug level.")
}

func (o *MqttOptions) ToClientConfig() *mqtt.ClientConfig {
	return &mqtt.ClientConfig{
		BrokerURL:          o.Broker,
		Username:           o.Username,
		Password:           o.Password,
		ClientID:           o.ClientID,
		ProtocolVersion:    o.ProtocolVersion,
		KeepAlive:          uint16(o.KeepAlive.Seconds()),
		SessionExpiry:      o.SessionExpiry,
		ConnectTimeout:     o.ConnectTimeout,
		ReconnectBackoff:   o.ReconnectBackoff,
		CleanStart:         o.CleanStart,
		InsecureSkipVerify: o.InsecureSkipVerify,
		Debug:              o.Debug,
	}
}
