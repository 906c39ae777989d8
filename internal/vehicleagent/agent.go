package vehicleagent

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/autopeer-io/fleetpeer/internal/vehicleagent/core"
	"github.com/autopeer-io/fleetpeer/internal/vehicleagent/hub"
	"github.com/autopeer-io/fleetpeer/pkg/log"
	"github.com/autopeer-io/fleetpeer/pkg/mqtt/topic"
	"github.com/autopeer-io/fleetpeer/pkg/protocol"
)

type Agent struct {
	vin     string
	hal     core.HAL
	hub     *hub.Hub
	modules []core.Module

	// reconnects receives a value after every broker reconnect.
	reconnects <-chan bool
}

func NewAgent(hal core.HAL, h *hub.Hub, reconnects <-chan bool, modules ...core.Module) *Agent {
	return &Agent{
		vin:        hal.VehicleID(),
		hal:        hal,
		hub:        h,
		modules:    modules,
		reconnects: reconnects,
	}
}

func (a *Agent) Run(ctx context.Context) error {
	log.Info("Starting cpeer-vehicle-agent", "vin", a.vin, "firmware", a.hal.FirmwareVersion())

	g, ctx := errgroup.WithContext(ctx)

	for _, m := range a.modules {
		if err := m.Setup(ctx, a.hal, a.hub); err != nil {
			return fmt.Errorf("setup module %s: %w", m.Name(), err)
		}

		for name, handler := range m.Routes() {
			if err := a.hub.Register(name, handler); err != nil {
				return fmt.Errorf("module %s register command %s failed: %w", m.Name(), name, err)
			}
		}
	}

	if err := a.hub.Start(ctx); err != nil {
		return err
	}
	defer a.hub.Stop()

	for _, m := range a.modules {
		if r, ok := m.(core.Runner); ok {
			g.Go(func() error { return r.Run(ctx) })
		}
	}
	g.Go(func() error {
		a.watchConnection(ctx)
		return nil
	})

	a.connected(ctx, true)

	err := g.Wait()
	log.Info("Agent shutting down...")
	a.goOffline()
	return err
}

func (a *Agent) watchConnection(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case first := <-a.reconnects:
			a.connected(ctx, first)
		}
	}
}

func (a *Agent) connected(ctx context.Context, first bool) {
	for _, m := range a.modules {
		if c, ok := m.(core.ConnectionAware); ok {
			c.OnConnected(ctx, first)
		}
	}
}

// goOffline replaces the retained online heartbeat. A clean disconnect does
// not fire the will, so the agent says goodbye itself.
func (a *Agent) goOffline() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	env, err := protocol.NewEnvelope(a.vin, "heartbeat",
		protocol.Heartbeat{Status: protocol.StatusOffline, Reason: "Shutdown"}, protocol.SeverityInfo)
	if err != nil {
		log.Error(err, "Failed to build offline heartbeat")
		return
	}
	if err := a.hub.Send(ctx, topic.KindHeartbeatStatus, env, core.QoSDurable); err != nil {
		log.Error(err, "Failed to send offline heartbeat")
	}
}
