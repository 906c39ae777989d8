// Package missionhub is the control plane: it consumes every vehicle subject,
// runs the mission dispatch state machine and serves the operator API.
package missionhub

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/autopeer-io/fleetpeer/internal/missionhub/core"
	"github.com/autopeer-io/fleetpeer/internal/missionhub/core/service"
	"github.com/autopeer-io/fleetpeer/internal/missionhub/fanout"
	"github.com/autopeer-io/fleetpeer/internal/missionhub/notifier"
	"github.com/autopeer-io/fleetpeer/internal/missionhub/router"
	"github.com/autopeer-io/fleetpeer/internal/missionhub/server"
	httpserver "github.com/autopeer-io/fleetpeer/internal/missionhub/server/http"
	mqttserver "github.com/autopeer-io/fleetpeer/internal/missionhub/server/mqtt"
	"github.com/autopeer-io/fleetpeer/pkg/log"
)

// MissionHub owns the hub's servers and the resources they share.
type MissionHub struct {
	manager *server.Manager
	repo    core.Repository
	redis   *redis.Client
}

// NewMissionHub wires adapters, the core service and the ingress servers.
func (cfg *Config) NewMissionHub(ctx context.Context) (*MissionHub, error) {
	// 1. Infrastructure: Repository (Secondary Adapter)
	repo, err := cfg.NewRepository(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.StoreOptions.Backend, err)
	}

	// 2. Infrastructure: Broker connection, shared by ingress and the command notifier
	client, err := cfg.NewMQTTClient()
	if err != nil {
		_ = repo.Close(ctx)
		return nil, fmt.Errorf("failed to init mqtt client: %w", err)
	}

	// 3. Infrastructure: Live fan-out, relayed through Redis when configured
	hub := fanout.NewHub()
	var live core.LiveNotifier = hub
	var relay *fanout.RedisRelay
	var rc *redis.Client
	if cfg.RedisOptions.Enabled() {
		rc = cfg.RedisOptions.NewClient()
		relay = fanout.NewRedisRelay(rc, cfg.RedisOptions.Channel, hub)
		live = relay
	}

	// 4. Core Domain Service
	svc := service.New(repo, notifier.NewMQTTNotifier(client), live)

	// 5. Ingress Servers (Primary Adapters)
	rt := router.New(svc, live, cfg.Lanes)
	servers := []server.Server{
		rt,
		mqttserver.NewServer(client, rt.Handle, cfg.MqttOptions.SharedGroup),
		httpserver.NewServer(cfg.HttpOptions, svc, hub, client.IsConnected),
	}
	if relay != nil {
		servers = append(servers, relay)
	}

	return &MissionHub{
		manager: server.NewManager(servers...),
		repo:    repo,
		redis:   rc,
	}, nil
}

// Run serves until ctx is done, then releases the store and Redis.
func (h *MissionHub) Run(ctx context.Context) error {
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.repo.Close(closeCtx); err != nil {
			log.Error(err, "Failed to close store")
		}
		if h.redis != nil {
			_ = h.redis.Close()
		}
	}()

	log.Info("Mission hub starting")
	return h.manager.Start(ctx)
}
