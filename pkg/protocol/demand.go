package protocol

// DemandType is the envelope type of a vehicle to control-plane demand.
type DemandType string

const (
	// DemandTaskRequest polls whether dispatched work exists.
	DemandTaskRequest DemandType = "demand_task_request"
	// DemandTaskAssignment announces the vehicle is free and awaiting work.
	DemandTaskAssignment DemandType = "demand_task_assignment"
	// DemandTaskStarted confirms a loaded mission has started.
	DemandTaskStarted DemandType = "demand_task_started"
)

// Demand is the data section of a device-demands envelope.
type Demand struct {
	Event       string `json:"event,omitempty"`
	VIN         string `json:"vin,omitempty"`
	RequestType string `json:"requestType,omitempty"`
	MissionID   string `json:"missionId,omitempty"`
	MissionCode string `json:"missionCode,omitempty"`
	Message     string `json:"message,omitempty"`
}
