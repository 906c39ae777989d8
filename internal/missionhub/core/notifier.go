package core

import (
	"context"
	"encoding/json"

	"github.com/autopeer-io/fleetpeer/pkg/mqtt/topic"
	"github.com/autopeer-io/fleetpeer/pkg/protocol"
)

// CommandNotifier sends asynchronous commands to vehicles.
// In fleetpeer, this is implemented by the MQTT outbound adapter.
type CommandNotifier interface {
	// Notify publishes a command to the target vehicle without waiting for it.
	Notify(ctx context.Context, vin string, command protocol.CommandName, params any) error
}

// LiveNotifier pushes notifications to observers such as dashboards.
type LiveNotifier interface {
	// Publish delivers payload under eventName to every observer in room.
	// An empty room reaches every observer.
	Publish(ctx context.Context, room, eventName string, payload any) error
}

// VehicleRoom is the observer room of one vehicle.
func VehicleRoom(vin string) string {
	return "vehicle_" + vin
}

// VehicleEventName qualifies an event name with the vehicle.
func VehicleEventName(vin string, kind topic.Kind) string {
	return "vehicle_" + vin + "_" + string(kind)
}

// AsMap converts a JSON document into a generic map, for audit data.
func AsMap(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{"raw": string(raw)}
	}
	return m
}
