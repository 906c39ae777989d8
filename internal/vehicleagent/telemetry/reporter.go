package telemetry

import (
	"context"
	"time"

	"k8s.io/utils/clock"

	"github.com/autopeer-io/fleetpeer/internal/vehicleagent/core"
	"github.com/autopeer-io/fleetpeer/pkg/log"
	"github.com/autopeer-io/fleetpeer/pkg/mqtt/topic"
	"github.com/autopeer-io/fleetpeer/pkg/protocol"
)

const (
	DefaultHeartbeatInterval = 10 * time.Second
	DefaultTelemetryInterval = 5 * time.Second
)

// Reporter publishes heartbeats and telemetry samples on fixed intervals,
// whatever the vehicle is doing.
type Reporter struct {
	heartbeatInterval time.Duration
	telemetryInterval time.Duration
	clock             clock.WithTicker

	vin     string
	hal     core.HAL
	sender  core.Sender
	started time.Time
}

var (
	_ core.Module = (*Reporter)(nil)
	_ core.Runner = (*Reporter)(nil)
)

func NewReporter(heartbeat, telemetry time.Duration, clk clock.WithTicker) *Reporter {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Reporter{
		heartbeatInterval: heartbeat,
		telemetryInterval: telemetry,
		clock:             clk,
	}
}

func (r *Reporter) Name() string { return "telemetry" }

func (r *Reporter) Setup(_ context.Context, hal core.HAL, sender core.Sender) error {
	r.vin = hal.VehicleID()
	r.hal = hal
	r.sender = sender
	r.started = r.clock.Now()
	return nil
}

func (r *Reporter) Routes() map[protocol.CommandName]core.HandlerFunc {
	return nil
}

func (r *Reporter) Run(ctx context.Context) error {
	heartbeat := r.clock.NewTicker(r.heartbeatInterval)
	defer heartbeat.Stop()
	telemetry := r.clock.NewTicker(r.telemetryInterval)
	defer telemetry.Stop()

	r.heartbeat(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-heartbeat.C():
			r.heartbeat(ctx)
		case <-telemetry.C():
			r.telemetry(ctx)
		}
	}
}

func (r *Reporter) heartbeat(ctx context.Context) {
	uptime := int64(r.clock.Since(r.started).Seconds())
	r.send(ctx, topic.KindHeartbeatStatus, "heartbeat", protocol.Heartbeat{Status: protocol.StatusOnline, Uptime: uptime})
}

func (r *Reporter) telemetry(ctx context.Context) {
	r.send(ctx, topic.KindTelemetry, string(topic.KindTelemetry), r.hal.Telemetry())
}

// send is best effort: a lost sample is superseded by the next one.
func (r *Reporter) send(ctx context.Context, kind topic.Kind, typ string, data any) {
	env, err := protocol.NewEnvelope(r.vin, typ, data, protocol.SeverityInfo)
	if err != nil {
		log.Error(err, "Failed to build envelope", "kind", kind)
		return
	}
	if err := r.sender.Send(ctx, kind, env, core.QoSBestEffort); err != nil {
		log.Debug("Dropped sample", "kind", kind, "error", err)
	}
}
