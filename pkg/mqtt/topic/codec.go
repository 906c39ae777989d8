package topic

import (
	"errors"
	"fmt"
	"strings"
)

// Namespace is the first segment of every per-vehicle subject.
const Namespace = "vehicle"

// Subject separators. Devices publish with "/" over MQTT, while the broker
// exposes the same subject as a "."-delimited routing key.
const (
	SeparatorDevice  = "/"
	SeparatorRouting = "."
)

// Kind is the message category carried in the last segment of a subject.
type Kind string

const (
	KindTelemetry       Kind = "telemetry"
	KindHeartbeatStatus Kind = "heartbeat-status"
	KindMissionEvents   Kind = "mission-events"
	KindLocation        Kind = "location"
	KindCommands        Kind = "commands"
	KindDeviceDemands   Kind = "device-demands"
)

// Kinds lists every kind a vehicle or the control plane may publish.
var Kinds = []Kind{
	KindTelemetry,
	KindHeartbeatStatus,
	KindMissionEvents,
	KindLocation,
	KindCommands,
	KindDeviceDemands,
}

// ErrMalformedSubject is returned when a subject cannot be mapped to a vehicle.
var ErrMalformedSubject = errors.New("malformed subject")

// Subject is a decoded per-vehicle subject.
type Subject struct {
	VIN  string
	Kind Kind
}

func (s Subject) String() string {
	return Encode(s.VIN, s.Kind)
}

// Decode parses "vehicle.<vin>.<kind>" or "vehicle/<vin>/<kind>".
// Segments after the kind are ignored.
func Decode(subject string) (Subject, error) {
	sep := SeparatorRouting
	if strings.Contains(subject, SeparatorDevice) {
		sep = SeparatorDevice
	}

	parts := strings.Split(subject, sep)
	if len(parts) < 3 {
		return Subject{}, fmt.Errorf("%w: %q has %d segments", ErrMalformedSubject, subject, len(parts))
	}
	if parts[0] != Namespace {
		return Subject{}, fmt.Errorf("%w: %q is outside the %q namespace", ErrMalformedSubject, subject, Namespace)
	}
	if parts[1] == "" || parts[2] == "" {
		return Subject{}, fmt.Errorf("%w: %q has an empty segment", ErrMalformedSubject, subject)
	}

	return Subject{VIN: parts[1], Kind: Kind(parts[2])}, nil
}

// Encode returns the device (MQTT) form of the subject.
func Encode(vin string, kind Kind) string {
	return build(SeparatorDevice, vin, string(kind))
}

// EncodeRoutingKey returns the broker routing-key form of the subject.
func EncodeRoutingKey(vin string, kind Kind) string {
	return build(SeparatorRouting, vin, string(kind))
}

// AllVehicles returns the filter matching every kind of every vehicle.
// Result: vehicle/+/+
func AllVehicles() string {
	return build(SeparatorDevice, Wildcard, Wildcard)
}

// Vehicle returns the filter for one kind of every vehicle.
// Result: vehicle/+/<kind>
func Vehicle(kind Kind) string {
	return build(SeparatorDevice, Wildcard, string(kind))
}

// Shared wraps a filter into an MQTT v5 shared subscription so that replicas
// in the same group split the stream. An empty group returns the filter as is.
func Shared(group, filter string) string {
	if group == "" {
		return filter
	}
	return fmt.Sprintf("$share/%s/%s", group, filter)
}

// Known reports whether k is one of the declared kinds.
func (k Kind) Known() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

func build(sep, vin, kind string) string {
	return Namespace + sep + vin + sep + kind
}
