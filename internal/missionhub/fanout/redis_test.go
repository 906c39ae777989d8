package fanout

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisRelayDeliversToLocalHub(t *testing.T) {
	m := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: m.Addr()})
	defer rc.Close()

	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()
	conn := dial(t, srv)
	send(t, conn, map[string]string{"type": "join_vehicle_room", "vin": "VIN1"})
	read(t, conn)

	relay := NewRedisRelay(rc, "fleetpeer:test", hub)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Start(ctx) }()

	// wait for the subscription to start
	require.Eventually(t, func() bool {
		return len(m.PubSubChannels("fleetpeer:test")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, relay.Publish(context.Background(), "vehicle_VIN1", "vehicle_VIN1_location", map[string]float64{"latitude": 50.1}))

	got := read(t, conn)
	assert.Equal(t, "vehicle_VIN1_location", got.Event)
	assert.JSONEq(t, `{"latitude":50.1}`, string(got.Data))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
}
