package protocol

// Vehicle connectivity states carried by heartbeat-status messages.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Heartbeat is the data section of a heartbeat-status envelope.
type Heartbeat struct {
	Status string `json:"status"`
	Uptime int64  `json:"uptime,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Telemetry is the data section of a telemetry envelope.
type Telemetry struct {
	Speed          float64  `json:"speed"`
	BatteryLevel   float64  `json:"batteryLevel"`
	BatteryVoltage float64  `json:"batteryVoltage"`
	BatteryCurrent float64  `json:"batteryCurrent"`
	StateOfCharge  float64  `json:"stateOfCharge"`
	EstimatedRange float64  `json:"estimatedRange"`
	Location       Location `json:"location"`
	Heading        float64  `json:"heading"`
	Odometer       float64  `json:"odometer"`
	Temperature    float64  `json:"temperature"`
	Autonomous     bool     `json:"autonomous"`
}

// Notification is what observers receive for every routed message.
type Notification struct {
	VIN         string `json:"vin"`
	MessageType string `json:"messageType"`
	Content     any    `json:"content"`
	RoutingKey  string `json:"routingKey"`
	Timestamp   int64  `json:"timestamp"`
}
