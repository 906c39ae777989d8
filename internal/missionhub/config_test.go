package missionhub

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/fleetpeer/pkg/options"
)

func newConfig(t *testing.T) *Config {
	t.Helper()
	bolt := options.NewBoltOptions()
	bolt.Path = filepath.Join(t.TempDir(), "hub.db")
	return &Config{
		HttpOptions:  options.NewHttpOptions(),
		MqttOptions:  options.NewMqttOptions(),
		StoreOptions: options.NewStoreOptions(),
		BoltOptions:  bolt,
		MongoOptions: options.NewMongoOptions(),
		RedisOptions: options.NewRedisOptions(),
	}
}

func TestNewRepository(t *testing.T) {
	ctx := context.Background()
	for _, backend := range []string{options.StoreMemory, options.StoreBolt} {
		cfg := newConfig(t)
		cfg.StoreOptions.Backend = backend

		repo, err := cfg.NewRepository(ctx)
		require.NoError(t, err, backend)
		assert.NotNil(t, repo.Missions())
		assert.NoError(t, repo.Close(ctx))
	}

	cfg := newConfig(t)
	cfg.StoreOptions.Backend = "sqlite"
	_, err := cfg.NewRepository(ctx)
	assert.Error(t, err)
}

func TestNewMissionHub(t *testing.T) {
	cfg := newConfig(t)
	cfg.StoreOptions.Backend = options.StoreMemory
	cfg.RedisOptions.Addr = "127.0.0.1:6379"

	hub, err := cfg.NewMissionHub(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, hub.redis)
	assert.NoError(t, hub.repo.Close(context.Background()))
}

func TestNewMQTTClientDefaultsClientID(t *testing.T) {
	cfg := newConfig(t)
	client, err := cfg.NewMQTTClient()
	require.NoError(t, err)
	assert.False(t, client.IsConnected())
}
