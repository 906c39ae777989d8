package model

import (
	"time"

	"github.com/autopeer-io/fleetpeer/pkg/protocol"
)

// Mission event types.
const (
	// EventTypeMission marks entries produced by the hub itself.
	EventTypeMission = "mission"
)

// MissionEvent is an immutable audit entry.
type MissionEvent struct {
	ID          string             `json:"id" bson:"_id"`
	MissionID   string             `json:"missionId" bson:"missionId"`
	MissionCode string             `json:"missionCode" bson:"missionCode"`
	VIN         string             `json:"vin" bson:"vin"`
	Type        string             `json:"type" bson:"type"`
	Event       protocol.EventName `json:"event" bson:"event"`
	Data        map[string]any     `json:"data,omitempty" bson:"data,omitempty"`
	CreatedAt   time.Time          `json:"createdAt" bson:"createdAt"`
}
