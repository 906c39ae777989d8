package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/autopeer-io/fleetpeer/internal/missionhub/core"
	"github.com/autopeer-io/fleetpeer/pkg/log"
)

var _ core.LiveNotifier = (*RedisRelay)(nil)

// relayFrame is what replicas exchange on the notification channel.
type relayFrame struct {
	Room  string          `json:"room"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// RedisRelay spreads notifications across hub replicas. Publish goes to a
// Redis channel and every replica, this one included, delivers what it
// receives to its local Hub.
type RedisRelay struct {
	rc      *redis.Client
	channel string
	hub     *Hub
	logger  log.Logger
}

// NewRedisRelay creates a relay in front of hub.
func NewRedisRelay(rc *redis.Client, channel string, hub *Hub) *RedisRelay {
	return &RedisRelay{rc: rc, channel: channel, hub: hub, logger: log.WithName("fanout-relay")}
}

func (r *RedisRelay) Publish(ctx context.Context, room, eventName string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s notification: %w", eventName, err)
	}
	raw, err := json.Marshal(relayFrame{Room: room, Event: eventName, Data: data})
	if err != nil {
		return err
	}
	if err := r.rc.Publish(ctx, r.channel, raw).Err(); err != nil {
		return fmt.Errorf("relay %s: %w", eventName, err)
	}
	return nil
}

// Start consumes the channel until ctx is done, resubscribing when the
// subscription drops.
func (r *RedisRelay) Start(ctx context.Context) error {
	r.logger.Info("Starting notification relay", "channel", r.channel)
	for {
		sub := r.rc.Subscribe(ctx, r.channel)
		r.consume(ctx, sub.Channel())
		_ = sub.Close()

		if ctx.Err() != nil {
			return nil
		}
		r.logger.Warn("Relay subscription closed, reconnecting")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Second):
		}
	}
}

func (r *RedisRelay) consume(ctx context.Context, ch <-chan *redis.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var f relayFrame
			if err := json.Unmarshal([]byte(msg.Payload), &f); err != nil {
				r.logger.Error(err, "Unable to parse relayed notification")
				continue
			}
			raw, err := json.Marshal(serverFrame{Event: f.Event, Data: f.Data})
			if err != nil {
				continue
			}
			r.hub.deliver(f.Room, raw)
		}
	}
}
