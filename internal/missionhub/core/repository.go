package core

import (
	"context"
	"errors"

	"github.com/autopeer-io/fleetpeer/internal/missionhub/core/model"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a unique key is taken.
	ErrAlreadyExists = errors.New("already exists")
)

// Repository groups the persistence ports of the hub.
type Repository interface {
	Missions() MissionRepository
	Events() EventRepository

	// Close releases the underlying connection or file.
	Close(ctx context.Context) error
}

// MissionRepository persists mission duties.
type MissionRepository interface {
	// Create stores a new mission. The mission code is unique.
	Create(ctx context.Context, m *model.MissionDuty) error

	FindByCode(ctx context.Context, code string) (*model.MissionDuty, error)

	FindByID(ctx context.Context, id string) (*model.MissionDuty, error)

	// FindOpenForVIN returns the vehicle's dispatched, non-terminal missions.
	FindOpenForVIN(ctx context.Context, vin string) ([]*model.MissionDuty, error)

	List(ctx context.Context, filter model.MissionFilter) ([]*model.MissionDuty, error)

	// Transition stores a status change and its audit entry atomically.
	// Neither is written when either write fails.
	Transition(ctx context.Context, t *model.Transition) error
}

// EventRepository persists the append-only mission audit trail.
type EventRepository interface {
	Create(ctx context.Context, e *model.MissionEvent) error

	// ListByMission returns the events of a mission in append order.
	ListByMission(ctx context.Context, code string) ([]*model.MissionEvent, error)
}
