package mqtt_test

import (
	"context"
	"fmt"
	"time"

	"github.com/autopeer-io/fleetpeer/pkg/log"
	"github.com/autopeer-io/fleetpeer/pkg/mqtt"
	"github.com/autopeer-io/fleetpeer/pkg/mqtt/topic"
)

// ExampleClient shows how a component connects, consumes every vehicle
// subject with manual acknowledgement and publishes a command.
func ExampleClient() {
	cfg := &mqtt.ClientConfig{
		BrokerURL:      "tcp://localhost:1883",
		ClientID:       "example-missionhub-001",
		Username:       "admin",
		Password:       "public",
		KeepAlive:      60,
		ConnectTimeout: 5 * time.Second,
		// A persistent session keeps the subscription alive while offline.
		CleanStart:    false,
		SessionExpiry: 3600,
		ManualAck:     true,
	}

	client, err := mqtt.NewClient(cfg)
	if err != nil {
		log.Error(err, "Failed to create MQTT client")
		return
	}

	ctx := context.Background()
	if err := client.Start(ctx); err != nil {
		log.Error(err, "Failed to start MQTT client")
		return
	}

	handler := func(ctx context.Context, msg *mqtt.Message) {
		defer func() { _ = msg.Ack() }()
		fmt.Printf("Received message on topic %s: %s\n", msg.Topic, string(msg.Payload))
	}

	filter := topic.Shared("missionhub", topic.AllVehicles())
	if err := client.Subscribe(ctx, filter, 1, handler); err != nil {
		log.Error(err, "Failed to subscribe", "topic", filter)
	}

	if err := client.AwaitConnection(ctx); err != nil {
		log.Error(err, "Connection timed out")
		return
	}

	payload := []byte(`{"vin":"V1","command":"awaitAssignment","params":{"isThereDispatchedTask":false}}`)
	if err := client.Publish(ctx, topic.Encode("V1", topic.KindCommands), 1, false, payload); err != nil {
		log.Error(err, "Failed to publish message")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	client.Disconnect(shutdownCtx)
}
