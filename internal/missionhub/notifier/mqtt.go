package notifier

import (
	"context"
	"fmt"

	"github.com/autopeer-io/fleetpeer/internal/missionhub/core"
	"github.com/autopeer-io/fleetpeer/internal/pkg/metrics"
	"github.com/autopeer-io/fleetpeer/pkg/log"
	pkgmqtt "github.com/autopeer-io/fleetpeer/pkg/mqtt"
	"github.com/autopeer-io/fleetpeer/pkg/mqtt/topic"
	"github.com/autopeer-io/fleetpeer/pkg/protocol"
)

// CommandQoS is the delivery level of vehicle commands.
const CommandQoS byte = 1

var _ core.CommandNotifier = (*MQTTNotifier)(nil)

// MQTTNotifier publishes commands on vehicle/<vin>/commands.
// Publishing is fire-and-forget: the vehicle answers through its demand channel.
type MQTTNotifier struct {
	client pkgmqtt.Client
}

// NewMQTTNotifier wraps a client. The client is shared with the ingress
// server, which owns its lifecycle.
func NewMQTTNotifier(client pkgmqtt.Client) *MQTTNotifier {
	return &MQTTNotifier{client: client}
}

func (n *MQTTNotifier) Notify(ctx context.Context, vin string, command protocol.CommandName, params any) error {
	cmd, err := protocol.NewCommand(vin, command, params)
	if err != nil {
		return err
	}
	payload, err := cmd.Marshal()
	if err != nil {
		return fmt.Errorf("marshal %s command: %w", command, err)
	}

	t := topic.Encode(vin, topic.KindCommands)
	if err := n.client.Publish(ctx, t, CommandQoS, false, payload); err != nil {
		metrics.CommandSentTotal.WithLabelValues(string(command), "failed").Inc()
		return fmt.Errorf("publish %s to %s: %w", command, t, err)
	}

	metrics.CommandSentTotal.WithLabelValues(string(command), "success").Inc()
	log.Debug("Command sent", "vin", vin, "command", command, "topic", t)
	return nil
}
