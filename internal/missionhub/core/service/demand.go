package service

import (
	"context"
	"fmt"

	"github.com/autopeer-io/fleetpeer/internal/missionhub/core"
	"github.com/autopeer-io/fleetpeer/pkg/mqtt/topic"
	"github.com/autopeer-io/fleetpeer/pkg/protocol"
)

type demandHandler func(ctx context.Context, vin string, env *protocol.Envelope, d *protocol.Demand) error

func (s *Service) demandHandlers() map[string]demandHandler {
	return map[string]demandHandler{
		string(protocol.DemandTaskRequest):    s.handleTaskRequest,
		string(protocol.DemandTaskAssignment): s.handleTaskAssignment,
		string(protocol.DemandTaskStarted):    s.handleTaskStarted,
	}
}

// HandleDemand processes a device-demands envelope from vin.
// The demand is chosen by the envelope type, then by the data's event field.
// Unknown demands are logged and ignored.
func (s *Service) HandleDemand(ctx context.Context, vin string, env *protocol.Envelope) error {
	var d protocol.Demand
	if len(env.Data) > 0 {
		if err := env.DecodeData(&d); err != nil {
			return fmt.Errorf("decode demand from %s: %w", vin, err)
		}
	}

	handler, ok := s.demands[env.Type]
	if !ok {
		handler, ok = s.demands[d.Event]
	}
	if !ok {
		s.logger.Warn("Ignoring unknown device demand", "vin", vin, "type", env.Type, "event", d.Event)
		return nil
	}
	return handler(ctx, vin, env, &d)
}

// handleTaskRequest answers the level-triggered poll of a vehicle.
func (s *Service) handleTaskRequest(ctx context.Context, vin string, _ *protocol.Envelope, _ *protocol.Demand) error {
	open, err := s.missions.FindOpenForVIN(ctx, vin)
	if err != nil {
		return fmt.Errorf("find open missions of %s: %w", vin, err)
	}

	if len(open) == 0 {
		return s.commands.Notify(ctx, vin, protocol.CommandAwaitAssignment,
			protocol.AssignmentStatus{IsThereDispatchedTask: false})
	}

	codes := make([]string, 0, len(open))
	for _, m := range open {
		codes = append(codes, m.MissionCode)
	}
	return s.commands.Notify(ctx, vin, protocol.CommandAwaitAssignedTaskReload,
		protocol.AssignmentStatus{IsThereDispatchedTask: true, MissionCodes: codes})
}

// handleTaskAssignment relays the vehicle's availability to its observers.
func (s *Service) handleTaskAssignment(ctx context.Context, vin string, _ *protocol.Envelope, d *protocol.Demand) error {
	eventName := core.VehicleEventName(vin, topic.KindDeviceDemands)
	n := protocol.Notification{
		VIN:         vin,
		MessageType: eventName,
		Content:     d,
		RoutingKey:  topic.EncodeRoutingKey(vin, topic.KindDeviceDemands),
		Timestamp:   s.clock.Now().UnixMilli(),
	}
	if err := s.live.Publish(ctx, core.VehicleRoom(vin), eventName, n); err != nil {
		return fmt.Errorf("broadcast assignment of %s: %w", vin, err)
	}
	return nil
}

func (s *Service) handleTaskStarted(ctx context.Context, vin string, env *protocol.Envelope, d *protocol.Demand) error {
	return s.MarkStarted(ctx, vin, d.MissionCode, d.MissionID, core.AsMap(env.Data))
}
