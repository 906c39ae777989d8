package core

import "github.com/autopeer-io/fleetpeer/pkg/protocol"

// HAL (Hardware Abstraction Layer) is the agent's port to the vehicle.
type HAL interface {
	// Info
	VehicleID() string
	FirmwareVersion() string

	// Telemetry samples the vehicle sensors.
	Telemetry() protocol.Telemetry

	// MoveTo reports the vehicle reached loc.
	MoveTo(loc protocol.Location)

	// SetDriving switches between driving and parked.
	SetDriving(driving bool)
}
