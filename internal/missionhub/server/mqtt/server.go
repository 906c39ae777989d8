package mqtt

import (
	"context"
	"fmt"
	"time"

	"github.com/autopeer-io/fleetpeer/pkg/log"
	pkgmqtt "github.com/autopeer-io/fleetpeer/pkg/mqtt"
	"github.com/autopeer-io/fleetpeer/pkg/mqtt/topic"
)

// SubscribeQoS is the delivery level of the consumer subscription.
const SubscribeQoS byte = 1

// Server implements the MQTT ingress layer: one persistent session bound to
// every vehicle subject.
type Server struct {
	client  pkgmqtt.Client
	handler pkgmqtt.MessageHandler
	filter  string
}

// NewServer creates the ingress server. A non-empty group turns the
// subscription into a shared one so replicas split the stream.
func NewServer(client pkgmqtt.Client, handler pkgmqtt.MessageHandler, group string) *Server {
	filter := topic.AllVehicles()
	if group != "" {
		filter = topic.Shared(group, filter)
	}
	return &Server{client: client, handler: handler, filter: filter}
}

// Filter returns the subscription filter.
func (s *Server) Filter() string {
	return s.filter
}

// Start connects to the broker and subscribes. It blocks until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	// 1. Start the connection manager (Non-blocking)
	if err := s.client.Start(ctx); err != nil {
		return err
	}

	// Ensure MQTT disconnects when Run exits (LIFO order)
	defer func() {
		log.Info("Disconnecting MQTT client...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.client.Disconnect(shutdownCtx)
		log.Info("MQTT client disconnected")
	}()

	// 2. Wait for the initial connection to be established
	log.Info("Waiting for MQTT connection...")
	if err := s.client.AwaitConnection(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	log.Info("MQTT Connected")

	// 3. The client re-subscribes the same filter after every reconnect.
	if err := s.client.Subscribe(ctx, s.filter, SubscribeQoS, s.handler); err != nil {
		return fmt.Errorf("failed to subscribe to topic: %s, err: %w", s.filter, err)
	}
	log.Info("Consuming vehicle messages", "filter", s.filter)

	<-ctx.Done()
	return nil
}
