package mission

import (
	"context"

	"github.com/looplab/fsm"

	"github.com/autopeer-io/fleetpeer/pkg/log"
)

// Execution states of the vehicle.
const (
	StateIdle               = "idle"
	StateAwaitingAssignment = "awaiting-assignment"
	StateMissionLoaded      = "mission-loaded"
	StateRunningOutbound    = "running-outbound"
	StateRunningReturn      = "running-return"
)

const (
	eventAwait  = "await"
	eventLoad   = "load"
	eventDepart = "depart"
	eventTurn   = "turn"
	eventFinish = "finish"
	eventAbort  = "abort"
)

func newExecutionFSM(vin string) *fsm.FSM {
	events := fsm.Events{
		{Name: eventAwait, Src: []string{StateIdle}, Dst: StateAwaitingAssignment},
		{Name: eventLoad, Src: []string{StateIdle, StateAwaitingAssignment}, Dst: StateMissionLoaded},
		{Name: eventDepart, Src: []string{StateMissionLoaded}, Dst: StateRunningOutbound},
		{Name: eventTurn, Src: []string{StateRunningOutbound}, Dst: StateRunningReturn},
		{Name: eventFinish, Src: []string{StateRunningReturn}, Dst: StateIdle},
		{Name: eventAbort, Src: []string{StateMissionLoaded, StateRunningOutbound, StateRunningReturn}, Dst: StateIdle},
	}

	callbacks := fsm.Callbacks{
		"enter_state": func(_ context.Context, e *fsm.Event) {
			log.Debug("Execution state changed", "vin", vin, "event", e.Event, "from", e.Src, "to", e.Dst)
		},
	}

	return fsm.NewFSM(StateIdle, events, callbacks)
}
