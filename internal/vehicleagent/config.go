package vehicleagent

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/autopeer-io/fleetpeer/internal/pkg/metrics"
	"github.com/autopeer-io/fleetpeer/internal/vehicleagent/core"
	"github.com/autopeer-io/fleetpeer/internal/vehicleagent/hal"
	"github.com/autopeer-io/fleetpeer/internal/vehicleagent/hub"
	"github.com/autopeer-io/fleetpeer/internal/vehicleagent/mission"
	"github.com/autopeer-io/fleetpeer/internal/vehicleagent/telemetry"
	"github.com/autopeer-io/fleetpeer/pkg/mqtt"
	"github.com/autopeer-io/fleetpeer/pkg/mqtt/topic"
	"github.com/autopeer-io/fleetpeer/pkg/options"
	"github.com/autopeer-io/fleetpeer/pkg/protocol"
)

type Config struct {
	MqttOptions *options.MqttOptions

	// VIN overrides discovery when set.
	VIN      string
	Firmware string

	Pacing            time.Duration
	Altitude          float64
	HeartbeatInterval time.Duration
	TelemetryInterval time.Duration
}

func (cfg *Config) NewAgent() (*Agent, error) {
	vin := DiscoverVehicleID(cfg.VIN)
	if vin == "" {
		return nil, fmt.Errorf("unable to determine the vehicle VIN")
	}

	systemHAL := hal.NewSimHAL(vin, cfg.Firmware, seed(vin))

	reconnects := make(chan bool, 1)
	mqttClient, err := cfg.newMQTTClient(vin, reconnects)
	if err != nil {
		return nil, fmt.Errorf("failed to init mqtt client: %w", err)
	}

	return NewAgent(
		systemHAL,
		hub.New(vin, mqttClient),
		reconnects,
		mission.NewManager(mission.Options{Pacing: cfg.Pacing, Altitude: cfg.Altitude}, nil),
		telemetry.NewReporter(cfg.HeartbeatInterval, cfg.TelemetryInterval, nil),
	), nil
}

func (cfg *Config) newMQTTClient(vin string, reconnects chan<- bool) (mqtt.Client, error) {
	mqttConfig := cfg.MqttOptions.ToClientConfig()
	if mqttConfig.ClientID == "" {
		mqttConfig.ClientID = fmt.Sprintf("cpeer-agent-%s", vin)
	}

	// We rely on Hub's reception time, so no timestamp in payload to avoid LWT staleness.
	offlineData, _ := json.Marshal(protocol.Heartbeat{Status: protocol.StatusOffline, Reason: "UnexpectedDisconnect"})
	offlinePayload, _ := json.Marshal(protocol.Envelope{
		VIN:      vin,
		Type:     "heartbeat",
		Data:     offlineData,
		Severity: protocol.SeverityWarning,
	})

	mqttConfig.Will = &mqtt.Will{
		Topic:   topic.Encode(vin, topic.KindHeartbeatStatus),
		Payload: offlinePayload,
		QoS:     core.QoSDurable,
		Retain:  true,
	}
	mqttConfig.OnStateChange = metrics.ObserveConnection("agent")
	// The first connection is handled once the command subscription exists.
	mqttConfig.OnConnectionUp = func(first bool) {
		if first {
			return
		}
		select {
		case reconnects <- first:
		default:
		}
	}

	return mqtt.NewClient(mqttConfig)
}

func seed(vin string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(vin))
	return h.Sum64()
}
