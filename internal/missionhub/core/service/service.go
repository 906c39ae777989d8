package service

import (
	"errors"

	"github.com/oklog/ulid/v2"
	"k8s.io/utils/clock"

	"github.com/autopeer-io/fleetpeer/internal/missionhub/core"
	"github.com/autopeer-io/fleetpeer/internal/pkg/util/keylock"
	"github.com/autopeer-io/fleetpeer/pkg/log"
)

var (
	// ErrMissionExists is returned when a mission code is already taken.
	ErrMissionExists = errors.New("mission already exists")
	// ErrMissionNotFound is returned when no mission matches.
	ErrMissionNotFound = errors.New("mission not found")
	// ErrInvalidTransition is returned when the mission state forbids the operation.
	ErrInvalidTransition = errors.New("invalid mission transition")
	// ErrVINMismatch is returned when a vehicle reports on another vehicle's mission.
	ErrVINMismatch = errors.New("mission belongs to another vehicle")
	// ErrInvalidRequest is returned for malformed operator input.
	ErrInvalidRequest = errors.New("invalid request")
)

// Service implements the mission dispatch use cases.
// Every mutation of a mission runs under the mission code's lock.
type Service struct {
	missions core.MissionRepository
	events   core.EventRepository
	commands core.CommandNotifier
	live     core.LiveNotifier

	clock  clock.PassiveClock
	locks  *keylock.KeyLock
	newID  func() string
	logger log.Logger

	demands map[string]demandHandler
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces the wall clock.
func WithClock(c clock.PassiveClock) Option {
	return func(s *Service) { s.clock = c }
}

// WithIDGenerator replaces the ULID generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// New creates the mission service.
func New(repo core.Repository, commands core.CommandNotifier, live core.LiveNotifier, opts ...Option) *Service {
	s := &Service{
		missions: repo.Missions(),
		events:   repo.Events(),
		commands: commands,
		live:     live,
		clock:    clock.RealClock{},
		locks:    keylock.New(),
		newID:    func() string { return ulid.Make().String() },
		logger:   log.WithName("mission-service"),
	}
	for _, o := range opts {
		o(s)
	}
	s.demands = s.demandHandlers()
	return s
}
