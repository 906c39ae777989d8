// Package router turns inbound vehicle messages into mission hub calls and
// live notifications.
package router

import (
	"context"
	"fmt"
	"hash/fnv"
	"runtime/debug"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/autopeer-io/fleetpeer/internal/missionhub/core"
	"github.com/autopeer-io/fleetpeer/internal/pkg/metrics"
	"github.com/autopeer-io/fleetpeer/pkg/log"
	pkgmqtt "github.com/autopeer-io/fleetpeer/pkg/mqtt"
	"github.com/autopeer-io/fleetpeer/pkg/mqtt/topic"
	"github.com/autopeer-io/fleetpeer/pkg/protocol"
)

const (
	// DefaultLanes is the number of per-vehicle workers.
	DefaultLanes = 8
	laneBuffer   = 256
)

// MissionService is the part of the mission service the router drives.
type MissionService interface {
	HandleDemand(ctx context.Context, vin string, env *protocol.Envelope) error
	RecordLifecycle(ctx context.Context, vin string, env *protocol.Envelope) error
}

// Inbound is a message after subject decoding.
type Inbound struct {
	Subject  topic.Subject
	Envelope *protocol.Envelope
	// Raw is set when the payload was not an envelope.
	Raw string
	// ReceivedAt is the hub's receipt time in Unix milliseconds.
	ReceivedAt int64
}

type handlerFunc func(ctx context.Context, in *Inbound) error

// Router dispatches messages by kind. Messages of one vehicle are processed
// in arrival order on the same lane; different vehicles run in parallel.
type Router struct {
	svc      MissionService
	live     core.LiveNotifier
	handlers map[topic.Kind]handlerFunc
	lanes    []chan *pkgmqtt.Message
	clock    clock.PassiveClock

	logger log.Logger
	once   sync.Once
	done   chan struct{}
	wg     sync.WaitGroup
}

// Option customizes a Router.
type Option func(*Router)

// WithClock replaces the clock that stamps receipt times.
func WithClock(c clock.PassiveClock) Option {
	return func(r *Router) { r.clock = c }
}

// New creates a router with n lanes. n <= 0 selects DefaultLanes.
func New(svc MissionService, live core.LiveNotifier, n int, opts ...Option) *Router {
	if n <= 0 {
		n = DefaultLanes
	}
	r := &Router{
		svc:    svc,
		live:   live,
		lanes:  make([]chan *pkgmqtt.Message, n),
		clock:  clock.RealClock{},
		logger: log.WithName("router"),
		done:   make(chan struct{}),
	}
	for _, o := range opts {
		o(r)
	}
	for i := range r.lanes {
		r.lanes[i] = make(chan *pkgmqtt.Message, laneBuffer)
	}
	r.handlers = r.dispatchTable()
	return r
}

// dispatchTable maps kinds, and the short names older vehicles use, to handlers.
func (r *Router) dispatchTable() map[topic.Kind]handlerFunc {
	return map[topic.Kind]handlerFunc{
		topic.KindTelemetry:       r.handleTelemetry,
		topic.KindHeartbeatStatus: r.handleHeartbeat,
		"status":                  r.handleHeartbeat,
		topic.KindCommands:        r.handleCommand,
		"command":                 r.handleCommand,
		topic.KindMissionEvents:   r.handleMissionEvent,
		"event":                   r.handleMissionEvent,
		topic.KindLocation:        r.handleLocation,
		topic.KindDeviceDemands:   r.handleDeviceDemand,
	}
}

// Start runs the lane workers until ctx is done. Messages still queued are
// left unacknowledged for the broker to redeliver.
func (r *Router) Start(ctx context.Context) error {
	for _, lane := range r.lanes {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.work(ctx, lane)
		}()
	}

	<-ctx.Done()
	r.once.Do(func() { close(r.done) })
	r.wg.Wait()
	return nil
}

// Handle is the MQTT message handler. Unroutable subjects are acknowledged
// and dropped here; everything else is queued on the vehicle's lane.
func (r *Router) Handle(ctx context.Context, msg *pkgmqtt.Message) {
	subject, err := topic.Decode(msg.Topic)
	if err != nil {
		r.logger.Warn("Dropping unroutable message", "topic", msg.Topic, "err", err)
		metrics.MessagesRoutedTotal.WithLabelValues("unknown", "unroutable").Inc()
		r.ack(msg)
		return
	}

	select {
	case r.lanes[r.laneOf(subject.VIN)] <- msg:
	case <-r.done:
	case <-ctx.Done():
	}
}

func (r *Router) laneOf(vin string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(vin))
	return int(h.Sum32() % uint32(len(r.lanes)))
}

func (r *Router) work(ctx context.Context, lane <-chan *pkgmqtt.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-lane:
			r.process(ctx, msg)
		}
	}
}

// process dispatches and fans out one message, then acknowledges it whatever
// the outcome. Failed handlers are not retried.
func (r *Router) process(ctx context.Context, msg *pkgmqtt.Message) {
	defer r.ack(msg)

	subject, err := topic.Decode(msg.Topic)
	if err != nil {
		return
	}
	in := &Inbound{Subject: subject, ReceivedAt: r.clock.Now().UnixMilli()}

	env, err := protocol.Parse(msg.Payload)
	if err != nil {
		r.logger.Warn("Payload is not an envelope, routing as raw text", "topic", msg.Topic, "err", err)
		in.Raw = string(msg.Payload)
		in.Envelope = &protocol.Envelope{
			VIN:       subject.VIN,
			Timestamp: in.ReceivedAt,
			Type:      string(subject.Kind),
			Severity:  protocol.SeverityWarning,
		}
	} else {
		in.Envelope = env
	}

	outcome := "handled"
	if err := r.dispatch(ctx, in); err != nil {
		outcome = "failed"
		r.logger.Error(err, "Handler failed", "vin", subject.VIN, "kind", subject.Kind, "type", in.Envelope.Type)
	}
	metrics.MessagesRoutedTotal.WithLabelValues(string(subject.Kind), outcome).Inc()

	r.fanout(ctx, in)
}

func (r *Router) dispatch(ctx context.Context, in *Inbound) (err error) {
	start := time.Now()
	defer func() {
		metrics.HandlerLatency.WithLabelValues(string(in.Subject.Kind)).Observe(time.Since(start).Seconds())
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panic: %v\n%s", p, debug.Stack())
		}
	}()

	handler, ok := r.handlers[in.Subject.Kind]
	if !ok {
		handler = r.handleGeneric
	}
	return handler(ctx, in)
}

// fanout sends <kind> and vehicle_<vin>_<kind> to the vehicle's room.
func (r *Router) fanout(ctx context.Context, in *Inbound) {
	vin, kind := in.Subject.VIN, in.Subject.Kind

	var content any = in.Envelope
	if in.Raw != "" {
		content = in.Raw
	}
	n := protocol.Notification{
		VIN:         vin,
		MessageType: string(kind),
		Content:     content,
		RoutingKey:  topic.EncodeRoutingKey(vin, kind),
		Timestamp:   in.ReceivedAt,
	}

	room := core.VehicleRoom(vin)
	for _, event := range []string{string(kind), core.VehicleEventName(vin, kind)} {
		if err := r.live.Publish(ctx, room, event, n); err != nil {
			r.logger.Error(err, "Live notification failed", "room", room, "event", event)
		}
	}
}

func (r *Router) ack(msg *pkgmqtt.Message) {
	if err := msg.Ack(); err != nil {
		r.logger.Error(err, "Failed to acknowledge message", "topic", msg.Topic)
	}
}
