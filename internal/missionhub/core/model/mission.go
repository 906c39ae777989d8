package model

import (
	"time"

	"github.com/autopeer-io/fleetpeer/pkg/protocol"
)

// MissionStatus is the lifecycle state of a mission duty.
type MissionStatus string

const (
	StatusCreated    MissionStatus = "created"
	StatusDispatched MissionStatus = "dispatched"
	StatusCompleted  MissionStatus = "completed"
	StatusFailed     MissionStatus = "failed"
	StatusCancelled  MissionStatus = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s MissionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// MissionDuty is the assignment of a task to a vehicle.
type MissionDuty struct {
	ID          string `json:"id" bson:"_id"`
	MissionCode string `json:"missionCode" bson:"missionCode"`
	VIN         string `json:"vin" bson:"vin"`
	TaskCode    string `json:"taskCode" bson:"taskCode"`
	Date        string `json:"date" bson:"date"`

	Task protocol.TaskSnapshot `json:"taskDispatched" bson:"taskDispatched"`

	Status       MissionStatus `json:"status" bson:"status"`
	Dispatched   bool          `json:"dispatched" bson:"dispatched"`
	DispatchedAt *time.Time    `json:"dispatchedAt,omitempty" bson:"dispatchedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// MissionCode composes the unique mission code.
func MissionCode(vin, taskCode, date string) string {
	return vin + "|" + taskCode + "|" + date
}

// Open reports whether the mission has been dispatched and not yet finished.
func (m *MissionDuty) Open() bool {
	return m.Dispatched && !m.Status.Terminal()
}

// Payload returns the load_mission params for the mission.
func (m *MissionDuty) Payload() protocol.MissionPayload {
	return protocol.MissionPayload{
		ID:          m.ID,
		MissionCode: m.MissionCode,
		VIN:         m.VIN,
		TaskCode:    m.TaskCode,
		Task:        m.Task,
	}
}

// MissionFilter narrows a mission listing. Zero fields match everything.
type MissionFilter struct {
	VIN    string
	Status MissionStatus
}

// Match reports whether m passes the filter.
func (f MissionFilter) Match(m *MissionDuty) bool {
	if f.VIN != "" && m.VIN != f.VIN {
		return false
	}
	if f.Status != "" && m.Status != f.Status {
		return false
	}
	return true
}

// MissionStats summarizes missions.
type MissionStats struct {
	Total      int                   `json:"total"`
	Dispatched int                   `json:"dispatched"`
	ByStatus   map[MissionStatus]int `json:"byStatus"`
	ByVIN      map[string]int        `json:"byVin"`
}

// Transition is a status change stored together with its audit entry.
type Transition struct {
	MissionCode string
	Status      MissionStatus
	At          time.Time
	// Dispatched also flags the mission dispatched at At.
	Dispatched bool
	Event      *MissionEvent
}

// Apply writes the change onto m.
func (t *Transition) Apply(m *MissionDuty) {
	m.Status = t.Status
	m.UpdatedAt = t.At
	if t.Dispatched {
		at := t.At
		m.Dispatched = true
		m.DispatchedAt = &at
	}
}
