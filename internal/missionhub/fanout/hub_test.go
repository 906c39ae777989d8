package fanout

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type received struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func dial(t *testing.T, srv *httptest.Server) *gorillaws.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := gorillaws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	assert.Equal(t, EventConnectionEstablished, read(t, conn).Event)
	return conn
}

func read(t *testing.T, conn *gorillaws.Conn) received {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var r received
	require.NoError(t, conn.ReadJSON(&r))
	return r
}

func send(t *testing.T, conn *gorillaws.Conn, frame map[string]string) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(frame))
}

func waitClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Stats().Clients == n }, 2*time.Second, 10*time.Millisecond)
}

func TestRoomDelivery(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	member := dial(t, srv)
	other := dial(t, srv)
	waitClients(t, hub, 2)

	send(t, member, map[string]string{"type": "join_vehicle_room", "vin": "VIN1"})
	joined := read(t, member)
	assert.Equal(t, EventJoinedVehicleRoom, joined.Event)
	assert.JSONEq(t, `{"vin":"VIN1","room":"vehicle_VIN1"}`, string(joined.Data))

	require.NoError(t, hub.Publish(context.Background(), "vehicle_VIN1", "telemetry", map[string]int{"speed": 12}))
	got := read(t, member)
	assert.Equal(t, "telemetry", got.Event)
	assert.JSONEq(t, `{"speed":12}`, string(got.Data))

	// the non-member only sees its own pong
	send(t, other, map[string]string{"type": "ping"})
	assert.Equal(t, EventPong, read(t, other).Event)

	// an empty room reaches everyone
	require.NoError(t, hub.Publish(context.Background(), "", "broadcast", nil))
	assert.Equal(t, "broadcast", read(t, member).Event)
	assert.Equal(t, "broadcast", read(t, other).Event)
}

func TestLeaveAndStats(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	send(t, conn, map[string]string{"type": "join_vehicle_room", "vin": "VIN1"})
	read(t, conn)

	send(t, conn, map[string]string{"type": "get_server_stats"})
	stats := read(t, conn)
	assert.Equal(t, EventServerStats, stats.Event)
	assert.JSONEq(t, `{"clients":1,"rooms":{"vehicle_VIN1":1}}`, string(stats.Data))

	send(t, conn, map[string]string{"type": "leave_vehicle_room", "vin": "VIN1"})
	assert.Equal(t, EventLeftVehicleRoom, read(t, conn).Event)
	assert.Empty(t, hub.Stats().Rooms)

	send(t, conn, map[string]string{"type": "join_vehicle_room"})
	assert.Equal(t, EventError, read(t, conn).Event)
}

func TestDisconnectUnregisters(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	send(t, conn, map[string]string{"type": "join_vehicle_room", "vin": "VIN1"})
	read(t, conn)
	require.NoError(t, conn.Close())

	waitClients(t, hub, 0)
	assert.Empty(t, hub.Stats().Rooms)
	assert.NoError(t, hub.Publish(context.Background(), "vehicle_VIN1", "telemetry", nil))
}
