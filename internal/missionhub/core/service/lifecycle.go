package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/autopeer-io/fleetpeer/internal/missionhub/core"
	"github.com/autopeer-io/fleetpeer/internal/missionhub/core/model"
	"github.com/autopeer-io/fleetpeer/pkg/protocol"
)

// terminalEvents maps vehicle-reported lifecycle events to FSM events.
var terminalEvents = map[protocol.EventName]string{
	protocol.EventCompleted: EventComplete,
	protocol.EventTaskError: EventFail,
}

// MarkStarted confirms a mission started on the vehicle. It moves the mission
// to dispatched and records the started event. A redelivered start for a
// dispatched mission is a no-op.
func (s *Service) MarkStarted(ctx context.Context, vin, code, id string, data map[string]any) error {
	return s.withMission(ctx, vin, code, id, func(duty *model.MissionDuty) error {
		if duty.Dispatched {
			s.logger.Debug("Mission already dispatched", "missionCode", duty.MissionCode, "vin", vin)
			return nil
		}

		t := &transition{duty: duty, audit: s.newEvent(duty, protocol.EventStarted, data)}
		if err := s.newMissionFSM(duty).fire(ctx, EventDispatch, t); err != nil {
			return err
		}

		s.logger.Info("Mission dispatched", "missionCode", duty.MissionCode, "vin", vin)
		return nil
	})
}

// RecordLifecycle appends a vehicle-reported mission event to the audit log.
// completed and task_error finish the mission; started is handled like
// demand_task_started. Events that do not name a mission are not recorded.
func (s *Service) RecordLifecycle(ctx context.Context, vin string, env *protocol.Envelope) error {
	var ev protocol.LifecycleEvent
	if err := env.DecodeData(&ev); err != nil {
		return fmt.Errorf("decode mission event from %s: %w", vin, err)
	}
	if ev.Event == "" {
		ev.Event = protocol.EventNameFromType(env.Type)
	}
	data := core.AsMap(env.Data)

	if !isRef(ev.MissionCode) && !isRef(ev.MissionID) {
		s.logger.Debug("Mission event without mission reference", "vin", vin, "event", ev.Event)
		return nil
	}
	if ev.Event == protocol.EventStarted {
		return s.MarkStarted(ctx, vin, ev.MissionCode, ev.MissionID, data)
	}

	return s.withMission(ctx, vin, ev.MissionCode, ev.MissionID, func(duty *model.MissionDuty) error {
		audit := s.newEvent(duty, ev.Event, data)

		fsmEvent, ok := terminalEvents[ev.Event]
		if !ok || duty.Status.Terminal() {
			return s.appendEvent(ctx, audit)
		}
		return s.newMissionFSM(duty).fire(ctx, fsmEvent, &transition{duty: duty, audit: audit})
	})
}

// withMission resolves a mission by code, or by id when the code is unknown,
// and runs fn under the mission code's lock.
func (s *Service) withMission(ctx context.Context, vin, code, id string, fn func(*model.MissionDuty) error) error {
	if !isRef(code) {
		if !isRef(id) {
			return fmt.Errorf("%w: no mission reference", ErrMissionNotFound)
		}
		duty, err := s.missions.FindByID(ctx, id)
		if errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("%w: id %s", ErrMissionNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("lookup mission id %s: %w", id, err)
		}
		code = duty.MissionCode
	}

	unlock := s.locks.Lock(code)
	defer unlock()

	duty, err := s.findByCode(ctx, code)
	if err != nil {
		return err
	}
	if duty.VIN != vin {
		return fmt.Errorf("%w: %s is assigned to %s, not %s", ErrVINMismatch, code, duty.VIN, vin)
	}
	return fn(duty)
}

func isRef(s string) bool {
	return s != "" && s != protocol.UnknownRef
}
