// Package memory is an in-process Repository for tests and single-node demos.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/autopeer-io/fleetpeer/internal/missionhub/core"
	"github.com/autopeer-io/fleetpeer/internal/missionhub/core/model"
)

// Store keeps missions and events in maps. Returned records are copies.
type Store struct {
	mu       sync.RWMutex
	missions map[string]*model.MissionDuty
	order    []string
	events   map[string][]*model.MissionEvent
}

var (
	_ core.Repository        = (*Store)(nil)
	_ core.MissionRepository = (*missions)(nil)
	_ core.EventRepository   = (*events)(nil)
)

// New returns an empty Store.
func New() *Store {
	return &Store{
		missions: make(map[string]*model.MissionDuty),
		events:   make(map[string][]*model.MissionEvent),
	}
}

func (s *Store) Missions() core.MissionRepository { return (*missions)(s) }
func (s *Store) Events() core.EventRepository     { return (*events)(s) }
func (s *Store) Close(context.Context) error      { return nil }

type missions Store

func (r *missions) Create(_ context.Context, m *model.MissionDuty) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.missions[m.MissionCode]; ok {
		return core.ErrAlreadyExists
	}
	r.missions[m.MissionCode] = clone(m)
	r.order = append(r.order, m.MissionCode)
	return nil
}

func (r *missions) FindByCode(_ context.Context, code string) (*model.MissionDuty, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.missions[code]
	if !ok {
		return nil, core.ErrNotFound
	}
	return clone(m), nil
}

func (r *missions) FindByID(_ context.Context, id string) (*model.MissionDuty, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.missions {
		if m.ID == id {
			return clone(m), nil
		}
	}
	return nil, core.ErrNotFound
}

func (r *missions) FindOpenForVIN(_ context.Context, vin string) ([]*model.MissionDuty, error) {
	return r.list(func(m *model.MissionDuty) bool { return m.VIN == vin && m.Open() }), nil
}

func (r *missions) List(_ context.Context, filter model.MissionFilter) ([]*model.MissionDuty, error) {
	return r.list(filter.Match), nil
}

func (r *missions) list(match func(*model.MissionDuty) bool) []*model.MissionDuty {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*model.MissionDuty
	for _, code := range r.order {
		if m := r.missions[code]; match(m) {
			out = append(out, clone(m))
		}
	}
	return out
}

func (r *missions) Transition(_ context.Context, t *model.Transition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.missions[t.MissionCode]
	if !ok {
		return core.ErrNotFound
	}
	t.Apply(m)
	if t.Event != nil {
		(*events)(r).append(t.Event)
	}
	return nil
}

type events Store

func (r *events) Create(_ context.Context, e *model.MissionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.append(e)
	return nil
}

func (r *events) append(e *model.MissionEvent) {
	cp := *e
	r.events[e.MissionCode] = append(r.events[e.MissionCode], &cp)
}

func (r *events) ListByMission(_ context.Context, code string) ([]*model.MissionEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.MissionEvent, 0, len(r.events[code]))
	for _, e := range r.events[code] {
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

func clone(m *model.MissionDuty) *model.MissionDuty {
	cp := *m
	if m.DispatchedAt != nil {
		at := *m.DispatchedAt
		cp.DispatchedAt = &at
	}
	if m.Task.Route != nil {
		route := *m.Task.Route
		route.Coordinates = slices.Clone(route.Coordinates)
		cp.Task.Route = &route
	}
	return &cp
}
