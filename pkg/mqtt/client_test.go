package mqtt

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicsMatch(t *testing.T) {
	tests := []struct {
		filter, topic string
		want          bool
	}{
		{"vehicle/+/+", "vehicle/V1/telemetry", true},
		{"vehicle/+/+", "vehicle/V1/telemetry/extra", false},
		{"vehicle/#", "vehicle/V1/telemetry/extra", true},
		{"vehicle/V1/commands", "vehicle/V1/commands", true},
		{"vehicle/V1/commands", "vehicle/V2/commands", false},
		{"vehicle/+/commands", "vehicle/V2/location", false},
		{"vehicle/+", "vehicle", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, topicsMatch(tt.filter, tt.topic), "%s vs %s", tt.filter, tt.topic)
	}
}

func TestTopicFilter(t *testing.T) {
	assert.Equal(t, "vehicle/+/+", topicFilter("$share/hub/vehicle/+/+"))
	assert.Equal(t, "vehicle/+/+", topicFilter("vehicle/+/+"))
}

func TestDispatchInOrderAndKeyedByFilter(t *testing.T) {
	var subs sync.Map
	var got []string
	record := func(tag string) MessageHandler {
		return func(_ context.Context, m *Message) { got = append(got, tag+":"+m.Topic) }
	}

	subs.Store("vehicle/+/+", subscriptionEntry{topic: "vehicle/+/+", handler: record("old")})
	// Re-subscribing the same filter replaces the handler.
	subs.Store("vehicle/+/+", subscriptionEntry{topic: "vehicle/+/+", handler: record("new")})

	assert.True(t, dispatch(&subs, NewMessage("vehicle/V1/location", nil, 1, nil)))
	assert.True(t, dispatch(&subs, NewMessage("vehicle/V1/telemetry", nil, 0, nil)))
	assert.False(t, dispatch(&subs, NewMessage("fleet/V1", nil, 0, nil)))

	assert.Equal(t, []string{"new:vehicle/V1/location", "new:vehicle/V1/telemetry"}, got)
}

func TestMessageAckOnce(t *testing.T) {
	calls := 0
	m := NewMessage("t", nil, 1, func() error {
		calls++
		return errors.New("broker gone")
	})
	assert.Error(t, m.Ack())
	assert.Error(t, m.Ack())
	assert.Equal(t, 1, calls)

	assert.NoError(t, NewMessage("t", nil, 0, nil).Ack())
}

func TestNewClient(t *testing.T) {
	_, err := NewClient(nil)
	require.Error(t, err)

	_, err = NewClient(&ClientConfig{BrokerURL: "localhost"})
	require.Error(t, err)

	_, err = NewClient(&ClientConfig{BrokerURL: "tcp://localhost:1883", ProtocolVersion: 3})
	require.Error(t, err)

	_, err = NewClient(&ClientConfig{BrokerURL: "tcp://localhost:1883", Will: &Will{}})
	require.Error(t, err)

	c, err := NewClient(&ClientConfig{BrokerURL: "tcp://localhost:1883"})
	require.NoError(t, err)
	require.IsType(t, &pahoClient{}, c)
	assert.Equal(t, StateDisconnected, c.State())
	assert.False(t, c.IsConnected())

	c, err = NewClient(&ClientConfig{BrokerURL: "tcp://localhost:1883", ProtocolVersion: ProtocolV311})
	require.NoError(t, err)
	require.IsType(t, &v3Client{}, c)
}

func TestClientNotStarted(t *testing.T) {
	for _, c := range []Client{newV5Client(&ClientConfig{}), newV3Client(&ClientConfig{})} {
		ctx := context.Background()
		assert.Error(t, c.Publish(ctx, "t", 0, false, nil))
		assert.Error(t, c.Subscribe(ctx, "t", 0, func(context.Context, *Message) {}))
		assert.Error(t, c.Unsubscribe(ctx, "t"))
		assert.Error(t, c.AwaitConnection(ctx))
	}
}

func TestStateTracker(t *testing.T) {
	var seen []ConnectionState
	tr := stateTracker{onChange: func(s ConnectionState) { seen = append(seen, s) }}
	tr.set(StateConnecting)
	tr.set(StateConnecting)
	tr.set(StateConnected)
	tr.set(StateConsuming)

	assert.Equal(t, []ConnectionState{StateConnecting, StateConnected, StateConsuming}, seen)
	assert.Equal(t, "consuming", tr.get().String())
}
