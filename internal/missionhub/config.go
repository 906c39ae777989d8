package missionhub

import (
	"context"
	"fmt"
	"os"

	"github.com/autopeer-io/fleetpeer/internal/missionhub/core"
	"github.com/autopeer-io/fleetpeer/internal/missionhub/store/bolt"
	"github.com/autopeer-io/fleetpeer/internal/missionhub/store/memory"
	"github.com/autopeer-io/fleetpeer/internal/missionhub/store/mongo"
	"github.com/autopeer-io/fleetpeer/internal/pkg/metrics"
	"github.com/autopeer-io/fleetpeer/pkg/log"
	"github.com/autopeer-io/fleetpeer/pkg/mqtt"
	"github.com/autopeer-io/fleetpeer/pkg/options"
)

// Config is everything the mission hub needs to start.
type Config struct {
	HttpOptions  *options.HttpOptions
	MqttOptions  *options.MqttOptions
	StoreOptions *options.StoreOptions
	BoltOptions  *options.BoltOptions
	MongoOptions *options.MongoOptions
	RedisOptions *options.RedisOptions

	// Lanes is the number of per-vehicle router workers.
	Lanes int
}

// NewRepository opens the configured persistence backend.
func (cfg *Config) NewRepository(ctx context.Context) (core.Repository, error) {
	switch cfg.StoreOptions.Backend {
	case options.StoreMemory:
		log.Warn("Using in-memory store, missions are lost on restart")
		return memory.New(), nil
	case options.StoreBolt:
		return bolt.Open(cfg.BoltOptions.Path)
	case options.StoreMongo:
		o := cfg.MongoOptions
		return mongo.Connect(ctx, o.URI, o.Database, o.Timeout)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreOptions.Backend)
	}
}

// NewMQTTClient builds the hub's single broker connection. It consumes with
// manual acknowledgement and publishes commands.
func (cfg *Config) NewMQTTClient() (mqtt.Client, error) {
	c := cfg.MqttOptions.ToClientConfig()

	if c.ClientID == "" {
		hostname, _ := os.Hostname()
		c.ClientID = fmt.Sprintf("cpeer-missionhub-%s", hostname)
	}
	c.ManualAck = true
	c.OnStateChange = metrics.ObserveConnection("missionhub")

	client, err := mqtt.NewClient(c)
	if err != nil {
		log.Error(err, "failed to new mqtt client")
		return nil, err
	}
	return client, nil
}
