package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/autopeer-io/fleetpeer/internal/missionhub/core"
	"github.com/autopeer-io/fleetpeer/internal/missionhub/core/model"
	"github.com/autopeer-io/fleetpeer/pkg/protocol"
)

// CreateMissionRequest describes a new mission duty.
type CreateMissionRequest struct {
	VIN      string                `json:"vin"`
	TaskCode string                `json:"taskCode"`
	Date     string                `json:"date"`
	Task     protocol.TaskSnapshot `json:"taskDispatched"`
}

func (r *CreateMissionRequest) validate() error {
	var missing []string
	if r.VIN == "" {
		missing = append(missing, "vin")
	}
	if r.TaskCode == "" {
		missing = append(missing, "taskCode")
	}
	if r.Date == "" {
		missing = append(missing, "date")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidRequest, strings.Join(missing, ", "))
	}
	if strings.Contains(r.VIN+r.TaskCode, "|") {
		return fmt.Errorf("%w: vin and taskCode must not contain '|'", ErrInvalidRequest)
	}
	return nil
}

// CreateMission stores a new mission in the created state.
// A taken mission code fails with ErrMissionExists and changes nothing.
func (s *Service) CreateMission(ctx context.Context, req *CreateMissionRequest) (*model.MissionDuty, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	code := model.MissionCode(req.VIN, req.TaskCode, req.Date)
	unlock := s.locks.Lock(code)
	defer unlock()

	if _, err := s.missions.FindByCode(ctx, code); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissionExists, code)
	} else if !errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("lookup mission %s: %w", code, err)
	}

	now := s.clock.Now()
	duty := &model.MissionDuty{
		ID:          s.newID(),
		MissionCode: code,
		VIN:         req.VIN,
		TaskCode:    req.TaskCode,
		Date:        req.Date,
		Task:        req.Task,
		Status:      model.StatusCreated,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.missions.Create(ctx, duty); err != nil {
		if errors.Is(err, core.ErrAlreadyExists) {
			return nil, fmt.Errorf("%w: %s", ErrMissionExists, code)
		}
		return nil, fmt.Errorf("create mission %s: %w", code, err)
	}

	s.logger.Info("Mission created", "missionCode", code, "vin", req.VIN)
	return duty, nil
}

// SendMission emits load_mission for the vehicle's mission and records
// mission_sent. Sending never marks the mission dispatched; the vehicle
// confirms with demand_task_started.
func (s *Service) SendMission(ctx context.Context, vin, code string) (*model.MissionDuty, error) {
	unlock := s.locks.Lock(code)
	defer unlock()

	duty, err := s.findByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if duty.VIN != vin {
		return nil, fmt.Errorf("%w: %s for vehicle %s", ErrMissionNotFound, code, vin)
	}
	if duty.Status.Terminal() {
		return nil, fmt.Errorf("%w: mission %s is %s", ErrInvalidTransition, code, duty.Status)
	}

	if err := s.commands.Notify(ctx, vin, protocol.CommandLoadMission, duty.Payload()); err != nil {
		return nil, fmt.Errorf("send mission %s: %w", code, err)
	}
	if err := s.appendEvent(ctx, s.newEvent(duty, protocol.EventMissionSent, nil)); err != nil {
		return nil, err
	}

	s.logger.Info("Mission sent", "missionCode", code, "vin", vin)
	return duty, nil
}

// CancelMission moves an open mission to cancelled.
func (s *Service) CancelMission(ctx context.Context, code, reason string) (*model.MissionDuty, error) {
	unlock := s.locks.Lock(code)
	defer unlock()

	duty, err := s.findByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	var data map[string]any
	if reason != "" {
		data = map[string]any{"reason": reason}
	}
	t := &transition{duty: duty, audit: s.newEvent(duty, protocol.EventCancelled, data)}
	if err := s.newMissionFSM(duty).fire(ctx, EventCancel, t); err != nil {
		return nil, err
	}

	s.logger.Info("Mission cancelled", "missionCode", code, "vin", duty.VIN)
	return duty, nil
}

// GetMission returns the mission with the given code.
func (s *Service) GetMission(ctx context.Context, code string) (*model.MissionDuty, error) {
	return s.findByCode(ctx, code)
}

// ListMissions returns the missions matching filter.
func (s *Service) ListMissions(ctx context.Context, filter model.MissionFilter) ([]*model.MissionDuty, error) {
	missions, err := s.missions.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list missions: %w", err)
	}
	return missions, nil
}

// Stats counts missions by status and by vehicle.
func (s *Service) Stats(ctx context.Context) (*model.MissionStats, error) {
	missions, err := s.ListMissions(ctx, model.MissionFilter{})
	if err != nil {
		return nil, err
	}

	stats := &model.MissionStats{
		ByStatus: make(map[model.MissionStatus]int),
		ByVIN:    make(map[string]int),
	}
	for _, m := range missions {
		stats.Total++
		stats.ByStatus[m.Status]++
		stats.ByVIN[m.VIN]++
		if m.Dispatched {
			stats.Dispatched++
		}
	}
	return stats, nil
}

// ListEvents returns the audit trail of a mission in append order.
func (s *Service) ListEvents(ctx context.Context, code string) ([]*model.MissionEvent, error) {
	if _, err := s.findByCode(ctx, code); err != nil {
		return nil, err
	}
	events, err := s.events.ListByMission(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("list events of %s: %w", code, err)
	}
	return events, nil
}

// SendCommand publishes an ad-hoc command to a vehicle.
func (s *Service) SendCommand(ctx context.Context, vin string, command protocol.CommandName, params any) error {
	if vin == "" || command == "" {
		return fmt.Errorf("%w: vin and command are required", ErrInvalidRequest)
	}
	if err := s.commands.Notify(ctx, vin, command, params); err != nil {
		return fmt.Errorf("send %s to %s: %w", command, vin, err)
	}
	return nil
}

func (s *Service) findByCode(ctx context.Context, code string) (*model.MissionDuty, error) {
	duty, err := s.missions.FindByCode(ctx, code)
	if errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrMissionNotFound, code)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup mission %s: %w", code, err)
	}
	return duty, nil
}

func (s *Service) newEvent(duty *model.MissionDuty, event protocol.EventName, data map[string]any) *model.MissionEvent {
	return &model.MissionEvent{
		MissionID:   duty.ID,
		MissionCode: duty.MissionCode,
		VIN:         duty.VIN,
		Type:        model.EventTypeMission,
		Event:       event,
		Data:        data,
	}
}

// appendEvent stamps and stores an audit entry. Failures are returned, never dropped.
func (s *Service) appendEvent(ctx context.Context, e *model.MissionEvent) error {
	if err := s.events.Create(ctx, s.stamp(e)); err != nil {
		return fmt.Errorf("record %s event for %s: %w", e.Event, e.MissionCode, err)
	}
	return nil
}

func (s *Service) stamp(e *model.MissionEvent) *model.MissionEvent {
	if e.ID == "" {
		e.ID = s.newID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock.Now()
	}
	return e
}
