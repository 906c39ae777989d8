package protocol

import "strings"

// EventName is a mission lifecycle label.
type EventName string

const (
	EventMissionSent          EventName = "mission_sent"
	EventStarted              EventName = "started"
	EventHeadingToDestination EventName = "heading_to_destination"
	EventDestinationReached   EventName = "destination_reached"
	EventReturnToBase         EventName = "return_to_base"
	EventReturnedToBase       EventName = "returned_to_base"
	EventDocked               EventName = "docked"
	EventCompleted            EventName = "completed"
	EventTaskError            EventName = "task_error"
	EventNoRouteCoordinates   EventName = "no_route_coordinates"
	EventSimulationLocked     EventName = "simulation_locked"
	EventCancelled            EventName = "cancelled"
)

// UnknownRef stands in for a mission id or code that is not known.
const UnknownRef = "unknown"

const lifecycleTypePrefix = "mission_events_"

// LifecycleType returns the envelope type used for a lifecycle event.
func LifecycleType(e EventName) string {
	return lifecycleTypePrefix + string(e)
}

// LifecycleEvent is the data section of a mission-events envelope.
type LifecycleEvent struct {
	Event       EventName `json:"event"`
	VIN         string    `json:"vin,omitempty"`
	MissionID   string    `json:"missionId,omitempty"`
	MissionCode string    `json:"missionCode,omitempty"`
	Status      string    `json:"status,omitempty"`
	Message     string    `json:"message,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// EventNameFromType recovers the lifecycle label from an envelope type.
func EventNameFromType(typ string) EventName {
	return EventName(strings.TrimPrefix(typ, lifecycleTypePrefix))
}
