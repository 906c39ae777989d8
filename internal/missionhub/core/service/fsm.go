package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/looplab/fsm"

	"github.com/autopeer-io/fleetpeer/internal/missionhub/core/model"
	"github.com/autopeer-io/fleetpeer/internal/pkg/metrics"
	fsmutil "github.com/autopeer-io/fleetpeer/internal/pkg/util/fsm"
)

const (
	// EventDispatch confirms the vehicle started the mission.
	EventDispatch = "event_dispatch"
	// EventComplete records a vehicle-reported completion.
	EventComplete = "event_complete"
	// EventFail records a vehicle-reported error.
	EventFail = "event_fail"
	// EventCancel is an operator cancellation.
	EventCancel = "event_cancel"
)

// transition carries the mission and the audit entry through the callbacks.
type transition struct {
	duty  *model.MissionDuty
	audit *model.MissionEvent
}

type missionFSM struct {
	*fsm.FSM
	svc *Service
}

func (s *Service) newMissionFSM(duty *model.MissionDuty) *missionFSM {
	f := &missionFSM{svc: s}

	open := []string{string(model.StatusCreated), string(model.StatusDispatched)}
	events := fsm.Events{
		{Name: EventDispatch, Src: []string{string(model.StatusCreated)}, Dst: string(model.StatusDispatched)},
		{Name: EventComplete, Src: open, Dst: string(model.StatusCompleted)},
		{Name: EventFail, Src: open, Dst: string(model.StatusFailed)},
		{Name: EventCancel, Src: open, Dst: string(model.StatusCancelled)},
	}

	callbacks := fsm.Callbacks{
		"enter_state": fsmutil.WrapEvent(f.ActionPersistTransition),
	}

	f.FSM = fsm.NewFSM(string(duty.Status), events, callbacks)
	return f
}

// fire runs event against the mission, mapping looplab errors to service errors.
func (f *missionFSM) fire(ctx context.Context, event string, t *transition) error {
	err := f.Event(ctx, event, t)
	if err == nil {
		metrics.MissionTransitionsTotal.WithLabelValues(event).Inc()
		return nil
	}

	var invalid fsm.InvalidEventError
	if errors.As(err, &invalid) {
		return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, event, invalid.State)
	}
	return err
}

// ActionPersistTransition stores the new status and its audit entry in a
// single repository write. Entering dispatched also sets dispatchedAt.
func (f *missionFSM) ActionPersistTransition(ctx context.Context, e *fsm.Event) error {
	if e.Err != nil {
		return e.Err
	}
	t := e.Args[0].(*transition)

	change := &model.Transition{
		MissionCode: t.duty.MissionCode,
		Status:      model.MissionStatus(e.Dst),
		At:          f.svc.clock.Now(),
		Dispatched:  e.Dst == string(model.StatusDispatched),
	}
	if t.audit != nil {
		change.Event = f.svc.stamp(t.audit)
	}
	if err := f.svc.missions.Transition(ctx, change); err != nil {
		return fmt.Errorf("move %s to %s: %w", t.duty.MissionCode, e.Dst, err)
	}

	change.Apply(t.duty)
	return nil
}
