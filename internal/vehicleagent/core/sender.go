package core

import (
	"context"

	"github.com/autopeer-io/fleetpeer/pkg/mqtt/topic"
	"github.com/autopeer-io/fleetpeer/pkg/protocol"
)

// Delivery levels used by the agent.
const (
	QoSBestEffort byte = 0
	QoSDurable    byte = 1
)

// Sender publishes envelopes on the vehicle's own subjects.
type Sender interface {
	Send(ctx context.Context, kind topic.Kind, env *protocol.Envelope, qos byte) error
}
