package router

import (
	"context"
	"fmt"

	"github.com/autopeer-io/fleetpeer/pkg/protocol"
)

func (r *Router) handleTelemetry(_ context.Context, in *Inbound) error {
	var t protocol.Telemetry
	if err := in.Envelope.DecodeData(&t); err != nil {
		return fmt.Errorf("telemetry from %s: %w", in.Subject.VIN, err)
	}
	r.logger.Debug("Telemetry", "vin", in.Subject.VIN, "speed", t.Speed, "battery", t.BatteryLevel)
	return nil
}

func (r *Router) handleHeartbeat(_ context.Context, in *Inbound) error {
	var hb protocol.Heartbeat
	if err := in.Envelope.DecodeData(&hb); err != nil {
		return fmt.Errorf("heartbeat from %s: %w", in.Subject.VIN, err)
	}
	if hb.Status == protocol.StatusOffline {
		r.logger.Info("Vehicle went offline", "vin", in.Subject.VIN, "reason", hb.Reason)
		return nil
	}
	r.logger.Debug("Heartbeat", "vin", in.Subject.VIN, "status", hb.Status, "uptime", hb.Uptime)
	return nil
}

// handleCommand sees the hub's own commands echoed back by the wildcard subscription.
func (r *Router) handleCommand(_ context.Context, in *Inbound) error {
	r.logger.Debug("Command observed", "vin", in.Subject.VIN, "type", in.Envelope.Type)
	return nil
}

func (r *Router) handleMissionEvent(ctx context.Context, in *Inbound) error {
	if in.Raw != "" {
		return fmt.Errorf("mission event from %s is not an envelope", in.Subject.VIN)
	}
	return r.svc.RecordLifecycle(ctx, in.Subject.VIN, in.Envelope)
}

func (r *Router) handleLocation(_ context.Context, in *Inbound) error {
	var loc protocol.Location
	if err := in.Envelope.DecodeData(&loc); err != nil {
		return fmt.Errorf("location from %s: %w", in.Subject.VIN, err)
	}
	r.logger.Debug("Location", "vin", in.Subject.VIN, "lat", loc.Latitude, "lon", loc.Longitude, "alt", loc.Altitude)
	return nil
}

func (r *Router) handleDeviceDemand(ctx context.Context, in *Inbound) error {
	if in.Raw != "" {
		return fmt.Errorf("device demand from %s is not an envelope", in.Subject.VIN)
	}
	return r.svc.HandleDemand(ctx, in.Subject.VIN, in.Envelope)
}

func (r *Router) handleGeneric(_ context.Context, in *Inbound) error {
	r.logger.Warn("Unknown message kind", "vin", in.Subject.VIN, "kind", in.Subject.Kind, "type", in.Envelope.Type)
	return nil
}
