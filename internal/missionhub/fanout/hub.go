// Package fanout pushes live vehicle notifications to dashboard clients over
// WebSocket. Clients join per-vehicle rooms and receive every notification
// published to the rooms they are in.
//
// Client → server frames:
//
//	{"type":"join_vehicle_room","vin":"<vin>"}
//	{"type":"leave_vehicle_room","vin":"<vin>"}
//	{"type":"ping"}
//	{"type":"get_server_stats"}
//
// Server → client frames:
//
//	{"event":"<event name>","data":{...}}
package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"github.com/autopeer-io/fleetpeer/internal/missionhub/core"
	"github.com/autopeer-io/fleetpeer/internal/pkg/metrics"
	"github.com/autopeer-io/fleetpeer/pkg/log"
)

// Server frame event names.
const (
	EventConnectionEstablished = "connection_established"
	EventJoinedVehicleRoom     = "joined_vehicle_room"
	EventLeftVehicleRoom       = "left_vehicle_room"
	EventServerStats           = "server_stats"
	EventPong                  = "pong"
	EventError                 = "error"
)

// Client frame types.
const (
	frameJoin  = "join_vehicle_room"
	frameLeave = "leave_vehicle_room"
	framePing  = "ping"
	frameStats = "get_server_stats"
)

const (
	sendBuffer = 64
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = gorillaws.Upgrader{
	// Requests without an Origin header (native clients) are always allowed;
	// browsers must be same-origin.
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && u.Host == r.Host
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

type serverFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type clientFrame struct {
	Type string `json:"type"`
	VIN  string `json:"vin,omitempty"`
}

// Stats describes the hub's current audience.
type Stats struct {
	Clients int            `json:"clients"`
	Rooms   map[string]int `json:"rooms"`
}

var _ core.LiveNotifier = (*Hub)(nil)

// Hub tracks connected clients and their rooms.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	rooms   map[string]map[*client]struct{}

	logger log.Logger
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		rooms:   make(map[string]map[*client]struct{}),
		logger:  log.WithName("fanout"),
	}
}

// Publish delivers payload to the clients of room. An empty room reaches every client.
// Slow clients whose buffer is full miss the notification.
func (h *Hub) Publish(_ context.Context, room, eventName string, payload any) error {
	data, err := json.Marshal(serverFrame{Event: eventName, Data: payload})
	if err != nil {
		return fmt.Errorf("marshal %s notification: %w", eventName, err)
	}
	h.deliver(room, data)
	return nil
}

func (h *Hub) deliver(room string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	targets := h.clients
	if room != "" {
		targets = h.rooms[room]
	}
	for c := range targets {
		c.enqueue(data)
	}
}

// Stats returns the number of clients and the size of each room.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s := Stats{Clients: len(h.clients), Rooms: make(map[string]int, len(h.rooms))}
	for room, members := range h.rooms {
		s.Rooms[room] = len(members)
	}
	return s
}

// ServeHTTP upgrades the connection and serves the client until it leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", "err", err)
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBuffer), rooms: make(map[string]struct{})}
	h.register(c)
	defer h.unregister(c)

	go c.writeLoop()
	c.reply(EventConnectionEstablished, map[string]any{"timestamp": time.Now().UnixMilli()})
	c.readLoop()
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	metrics.FanoutClients.Inc()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
	h.mu.Unlock()

	close(c.send)
	metrics.FanoutClients.Dec()
}

func (h *Hub) join(c *client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

func (h *Hub) leave(c *client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, room)
}

func (h *Hub) leaveLocked(c *client, room string) {
	delete(c.rooms, room)
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// client is one dashboard connection. rooms is guarded by the hub's lock.
type client struct {
	hub   *Hub
	conn  *gorillaws.Conn
	send  chan []byte
	rooms map[string]struct{}
}

func (c *client) enqueue(data []byte) {
	select {
	case c.send <- data:
	default:
		c.hub.logger.Warn("Dropping notification for slow client", "remote", c.conn.RemoteAddr().String())
	}
}

func (c *client) reply(event string, data any) {
	raw, err := json.Marshal(serverFrame{Event: event, Data: data})
	if err != nil {
		return
	}
	c.enqueue(raw)
}

func (c *client) readLoop() {
	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var f clientFrame
		if err := json.Unmarshal(raw, &f); err != nil {
			c.reply(EventError, map[string]string{"message": "invalid frame"})
			continue
		}
		c.handle(&f)
	}
}

func (c *client) handle(f *clientFrame) {
	switch f.Type {
	case frameJoin, frameLeave:
		if f.VIN == "" {
			c.reply(EventError, map[string]string{"message": "vin is required"})
			return
		}
		room := core.VehicleRoom(f.VIN)
		if f.Type == frameJoin {
			c.hub.join(c, room)
			c.reply(EventJoinedVehicleRoom, map[string]string{"vin": f.VIN, "room": room})
		} else {
			c.hub.leave(c, room)
			c.reply(EventLeftVehicleRoom, map[string]string{"vin": f.VIN, "room": room})
		}
	case framePing:
		c.reply(EventPong, map[string]any{"timestamp": time.Now().UnixMilli()})
	case frameStats:
		c.reply(EventServerStats, c.hub.Stats())
	default:
		c.reply(EventError, map[string]string{"message": "unknown frame type " + f.Type})
	}
}

func (c *client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(gorillaws.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(gorillaws.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(gorillaws.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
