package hub

import (
	"context"
	"fmt"

	"github.com/autopeer-io/fleetpeer/internal/vehicleagent/core"
	"github.com/autopeer-io/fleetpeer/pkg/log"
	"github.com/autopeer-io/fleetpeer/pkg/mqtt"
	"github.com/autopeer-io/fleetpeer/pkg/protocol"
)

// Register binds a command to its handler. A command has exactly one handler.
func (h *Hub) Register(name protocol.CommandName, handler core.HandlerFunc) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.routes[name]; ok {
		return fmt.Errorf("command %s is already registered", name)
	}
	h.routes[name] = handler
	return nil
}

func (h *Hub) onCommand(ctx context.Context, msg *mqtt.Message) {
	cmd, err := protocol.ParseCommand(msg.Payload)
	if err != nil {
		log.Warn("Dropping malformed command", "topic", msg.Topic, "error", err)
		return
	}
	if cmd.VIN != "" && cmd.VIN != h.vin {
		log.Warn("Dropping command addressed to another vehicle", "vin", cmd.VIN, "command", cmd.Command)
		return
	}

	h.mu.RLock()
	handler, ok := h.routes[cmd.Command]
	h.mu.RUnlock()
	if !ok {
		log.Warn("No handler for command", "command", cmd.Command)
		return
	}

	if err := handler(ctx, cmd); err != nil {
		log.Error(err, "Command handler failed", "command", cmd.Command)
	}
}
