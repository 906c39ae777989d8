// Package mission executes the missions a vehicle is given: it announces the
// vehicle, loads mission duties and replays their route out and back.
package mission

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"k8s.io/utils/clock"

	"github.com/autopeer-io/fleetpeer/internal/pkg/metrics"
	fsmutil "github.com/autopeer-io/fleetpeer/internal/pkg/util/fsm"
	"github.com/autopeer-io/fleetpeer/internal/vehicleagent/core"
	"github.com/autopeer-io/fleetpeer/pkg/log"
	"github.com/autopeer-io/fleetpeer/pkg/mqtt/topic"
	"github.com/autopeer-io/fleetpeer/pkg/protocol"
)

// DefaultPacing is the delay between two location updates of a run.
const DefaultPacing = 500 * time.Millisecond

// Options tunes route execution.
type Options struct {
	// Pacing is the delay after every location update. Zero disables it.
	Pacing time.Duration
	// Altitude is used for coordinates that carry none.
	Altitude float64
}

// Manager is the mission module of the agent.
type Manager struct {
	opts  Options
	clock clock.Clock

	session *Session
	fsm     *fsm.FSM

	vin    string
	hal    core.HAL
	sender core.Sender

	// runCtx outlives single commands; it ends when the agent shuts down.
	runCtx context.Context
	runs   sync.WaitGroup
}

var (
	_ core.Module          = (*Manager)(nil)
	_ core.Runner          = (*Manager)(nil)
	_ core.ConnectionAware = (*Manager)(nil)
)

func NewManager(opts Options, clk clock.Clock) *Manager {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Manager{
		opts:    opts,
		clock:   clk,
		session: &Session{},
	}
}

func (m *Manager) Name() string { return "mission" }

func (m *Manager) Setup(ctx context.Context, hal core.HAL, sender core.Sender) error {
	m.vin = hal.VehicleID()
	m.hal = hal
	m.sender = sender
	m.runCtx = ctx
	m.fsm = newExecutionFSM(m.vin)
	return nil
}

func (m *Manager) Routes() map[protocol.CommandName]core.HandlerFunc {
	return map[protocol.CommandName]core.HandlerFunc{
		protocol.CommandAwaitAssignment:         m.onAwaitAssignment,
		protocol.CommandAwaitAssignedTaskReload: m.onAwaitAssignedTaskReload,
		protocol.CommandLoadMission:             m.onLoadMission,
	}
}

// Run waits for shutdown, then for the run in flight to give up its lock.
func (m *Manager) Run(ctx context.Context) error {
	<-ctx.Done()
	m.runs.Wait()
	return nil
}

// State returns the current execution state.
func (m *Manager) State() string {
	return m.fsm.Current()
}

// Session exposes the execution session.
func (m *Manager) Session() *Session {
	return m.session
}

// OnConnected announces a free vehicle and polls for dispatched work.
func (m *Manager) OnConnected(ctx context.Context, first bool) {
	log.Info("Polling for dispatched missions", "vin", m.vin, "first", first)

	if m.fsm.Is(StateIdle) {
		if err := m.announce(ctx); err != nil {
			log.Error(err, "Failed to announce vehicle", "vin", m.vin)
		}
	}
	if err := m.demand(ctx, protocol.DemandTaskRequest, nil); err != nil {
		log.Error(err, "Failed to poll for dispatched missions", "vin", m.vin)
	}
}

func (m *Manager) announce(ctx context.Context) error {
	if err := m.demand(ctx, protocol.DemandTaskAssignment, nil); err != nil {
		return err
	}
	return m.fire(ctx, eventAwait)
}

func (m *Manager) onAwaitAssignment(ctx context.Context, _ *protocol.Command) error {
	log.Info("No dispatched mission, waiting for assignment", "vin", m.vin)
	if m.fsm.Is(StateIdle) {
		return m.announce(ctx)
	}
	return nil
}

func (m *Manager) onAwaitAssignedTaskReload(_ context.Context, cmd *protocol.Command) error {
	var status protocol.AssignmentStatus
	if len(cmd.Params) > 0 {
		if err := json.Unmarshal(cmd.Params, &status); err != nil {
			return fmt.Errorf("decode %s params: %w", cmd.Command, err)
		}
	}
	log.Info("Dispatched missions pending reload", "vin", m.vin, "missionCodes", status.MissionCodes)
	return nil
}

// onLoadMission stores the mission, confirms the start and hands the route
// to a background run. The command handler itself never blocks on the route.
// While a run holds the lock the execution state belongs to that run, so a
// second mission is stored and confirmed but never enters the state machine.
func (m *Manager) onLoadMission(ctx context.Context, cmd *protocol.Command) error {
	var mission protocol.MissionPayload
	if err := json.Unmarshal(cmd.Params, &mission); err != nil {
		err = fmt.Errorf("decode %s params: %w", cmd.Command, err)
		m.report(ctx, nil, protocol.EventTaskError, err.Error())
		return err
	}

	m.session.Load(&mission)
	m.confirmStart(ctx, &mission)

	busy := m.session.Locked()
	if !busy {
		if err := m.fire(ctx, eventLoad); err != nil {
			return err
		}
	}

	if mission.Task.Route == nil || len(mission.Task.Route.Coordinates) == 0 {
		log.Warn("Mission has no route", "vin", m.vin, "missionCode", mission.MissionCode)
		metrics.AgentRunsTotal.WithLabelValues("no_route").Inc()
		m.report(ctx, &mission, protocol.EventNoRouteCoordinates, "mission route has no coordinates")
		if busy {
			return nil
		}
		return m.fire(ctx, eventAbort)
	}

	if busy || !m.session.TryLock() {
		log.Warn("Mission rejected, another run is in progress", "vin", m.vin, "missionCode", mission.MissionCode)
		metrics.AgentRunsTotal.WithLabelValues("locked").Inc()
		m.report(ctx, &mission, protocol.EventSimulationLocked, "another mission is running")
		if busy {
			return nil
		}
		return m.fire(ctx, eventAbort)
	}

	m.runs.Add(1)
	go m.execute(m.runCtx, &mission)
	return nil
}

func (m *Manager) confirmStart(ctx context.Context, mission *protocol.MissionPayload) {
	started := protocol.Demand{
		Event:       string(protocol.EventStarted),
		VIN:         m.vin,
		MissionID:   mission.ID,
		MissionCode: mission.MissionCode,
	}
	if err := m.demand(ctx, protocol.DemandTaskStarted, &started); err != nil {
		log.Error(err, "Failed to confirm mission start", "missionCode", mission.MissionCode)
	}
	m.report(ctx, mission, protocol.EventStarted, "")
}

// execute runs the route and always releases the lock. A run cut short by
// shutdown is abandoned without reporting an error.
func (m *Manager) execute(ctx context.Context, mission *protocol.MissionPayload) {
	defer m.runs.Done()
	defer m.session.Unlock()

	err := m.drive(ctx, mission)
	switch {
	case err == nil:
		metrics.AgentRunsTotal.WithLabelValues("completed").Inc()
		log.Info("Mission completed", "vin", m.vin, "missionCode", mission.MissionCode)
		return
	case ctx.Err() != nil:
		metrics.AgentRunsTotal.WithLabelValues("abandoned").Inc()
		log.Info("Mission run abandoned on shutdown", "vin", m.vin, "missionCode", mission.MissionCode)
	default:
		metrics.AgentRunsTotal.WithLabelValues("failed").Inc()
		log.Error(err, "Mission run failed", "vin", m.vin, "missionCode", mission.MissionCode)
		m.report(ctx, mission, protocol.EventTaskError, err.Error())
	}

	if err := m.fire(context.WithoutCancel(ctx), eventAbort); err != nil {
		log.Error(err, "Failed to reset execution state", "vin", m.vin)
	}
}

func (m *Manager) drive(ctx context.Context, mission *protocol.MissionPayload) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("mission run panicked: %v", r)
		}
	}()

	route := make([]protocol.Location, 0, len(mission.Task.Route.Coordinates))
	for _, c := range mission.Task.Route.Coordinates {
		loc, err := protocol.LocationFromCoordinate(c, m.opts.Altitude)
		if err != nil {
			return err
		}
		route = append(route, loc)
	}

	m.hal.SetDriving(true)
	defer m.hal.SetDriving(false)

	if err := m.fire(ctx, eventDepart); err != nil {
		return err
	}
	if err := m.emit(ctx, mission, protocol.EventHeadingToDestination, ""); err != nil {
		return err
	}
	for _, loc := range route {
		if err := m.moveTo(ctx, loc, core.QoSDurable); err != nil {
			return err
		}
	}
	if err := m.emit(ctx, mission, protocol.EventDestinationReached, ""); err != nil {
		return err
	}
	if err := m.emit(ctx, mission, protocol.EventReturnToBase, ""); err != nil {
		return err
	}

	if err := m.fire(ctx, eventTurn); err != nil {
		return err
	}
	for i := len(route) - 1; i >= 0; i-- {
		if err := m.moveTo(ctx, route[i], core.QoSBestEffort); err != nil {
			return err
		}
	}
	for _, ev := range []protocol.EventName{protocol.EventReturnedToBase, protocol.EventDocked, protocol.EventCompleted} {
		if err := m.emit(ctx, mission, ev, ""); err != nil {
			return err
		}
	}
	return m.fire(ctx, eventFinish)
}

// moveTo publishes one location update and waits the pacing delay.
func (m *Manager) moveTo(ctx context.Context, loc protocol.Location, qos byte) error {
	m.hal.MoveTo(loc)

	env, err := protocol.NewEnvelope(m.vin, string(topic.KindLocation), loc, protocol.SeverityInfo)
	if err != nil {
		return err
	}
	if err := m.sender.Send(ctx, topic.KindLocation, env, qos); err != nil {
		return fmt.Errorf("send location: %w", err)
	}

	if m.opts.Pacing <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-m.clock.After(m.opts.Pacing):
		return nil
	}
}

// emit publishes a lifecycle event of mission on mission-events.
func (m *Manager) emit(ctx context.Context, mission *protocol.MissionPayload, ev protocol.EventName, msg string) error {
	data := protocol.LifecycleEvent{
		Event:       ev,
		VIN:         m.vin,
		MissionID:   protocol.UnknownRef,
		MissionCode: protocol.UnknownRef,
		Message:     msg,
	}
	if mission != nil {
		if mission.ID != "" {
			data.MissionID = mission.ID
		}
		if mission.MissionCode != "" {
			data.MissionCode = mission.MissionCode
		}
	}

	severity := protocol.SeverityInfo
	switch ev {
	case protocol.EventTaskError:
		severity = protocol.SeverityError
		data.Error, data.Message = msg, ""
	case protocol.EventSimulationLocked, protocol.EventNoRouteCoordinates:
		severity = protocol.SeverityWarning
	}

	env, err := protocol.NewEnvelope(m.vin, protocol.LifecycleType(ev), data, severity)
	if err != nil {
		return err
	}
	if err := m.sender.Send(ctx, topic.KindMissionEvents, env, core.QoSDurable); err != nil {
		return fmt.Errorf("send %s: %w", ev, err)
	}
	return nil
}

// report is emit for paths that have nothing left to abort.
func (m *Manager) report(ctx context.Context, mission *protocol.MissionPayload, ev protocol.EventName, msg string) {
	if err := m.emit(context.WithoutCancel(ctx), mission, ev, msg); err != nil {
		log.Error(err, "Failed to report mission event", "vin", m.vin, "event", ev)
	}
}

func (m *Manager) demand(ctx context.Context, typ protocol.DemandType, d *protocol.Demand) error {
	if d == nil {
		d = &protocol.Demand{Event: string(typ), VIN: m.vin}
	}
	d.RequestType = string(typ)

	env, err := protocol.NewEnvelope(m.vin, string(typ), d, protocol.SeverityInfo)
	if err != nil {
		return err
	}
	if err := m.sender.Send(ctx, topic.KindDeviceDemands, env, core.QoSDurable); err != nil {
		return fmt.Errorf("send %s: %w", typ, err)
	}
	return nil
}

func (m *Manager) fire(ctx context.Context, event string) error {
	return fsmutil.IgnoreNoTransition(m.fsm.Event(ctx, event))
}
