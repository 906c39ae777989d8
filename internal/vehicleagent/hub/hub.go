package hub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/autopeer-io/fleetpeer/internal/vehicleagent/core"
	"github.com/autopeer-io/fleetpeer/pkg/log"
	"github.com/autopeer-io/fleetpeer/pkg/mqtt"
	"github.com/autopeer-io/fleetpeer/pkg/mqtt/topic"
	"github.com/autopeer-io/fleetpeer/pkg/protocol"
)

// Hub is the agent's link to the broker. It publishes on the vehicle's own
// subjects and dispatches the commands addressed to it.
type Hub struct {
	vin string
	mc  mqtt.Client

	mu     sync.RWMutex
	routes map[protocol.CommandName]core.HandlerFunc
}

var _ core.Sender = (*Hub)(nil)

func New(vin string, client mqtt.Client) *Hub {
	return &Hub{
		vin:    vin,
		mc:     client,
		routes: make(map[protocol.CommandName]core.HandlerFunc),
	}
}

// Send publishes env on vehicle/<vin>/<kind>. Heartbeats are retained so a
// late subscriber sees the current connectivity, including the broker-sent will.
func (h *Hub) Send(ctx context.Context, kind topic.Kind, env *protocol.Envelope, qos byte) error {
	payload, err := env.Marshal()
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", kind, err)
	}
	retain := kind == topic.KindHeartbeatStatus
	return h.mc.Publish(ctx, topic.Encode(h.vin, kind), qos, retain, payload)
}

func (h *Hub) IsConnected() bool {
	return h.mc.IsConnected()
}

// Start connects and subscribes to the vehicle's command subject.
func (h *Hub) Start(ctx context.Context) error {
	if err := h.mc.Start(ctx); err != nil {
		return err
	}

	if err := h.mc.AwaitConnection(ctx); err != nil {
		return err
	}

	return h.mc.Subscribe(ctx, topic.Encode(h.vin, topic.KindCommands), core.QoSDurable, h.onCommand)
}

func (h *Hub) Stop() {
	log.Info("Disconnecting MQTT client...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h.mc.Disconnect(ctx)
}
