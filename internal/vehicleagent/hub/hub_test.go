package hub

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/fleetpeer/pkg/mqtt"
	"github.com/autopeer-io/fleetpeer/pkg/mqtt/topic"
	"github.com/autopeer-io/fleetpeer/pkg/protocol"
)

type published struct {
	topic  string
	qos    byte
	retain bool
}

type fakeClient struct {
	mqtt.Client

	mu        sync.Mutex
	published []published
	filter    string
	handler   mqtt.MessageHandler
}

func (f *fakeClient) Start(context.Context) error           { return nil }
func (f *fakeClient) AwaitConnection(context.Context) error { return nil }

func (f *fakeClient) Publish(_ context.Context, topic string, qos byte, retain bool, _ []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, published{topic, qos, retain})
	return nil
}

func (f *fakeClient) Subscribe(_ context.Context, filter string, _ byte, handler mqtt.MessageHandler) error {
	f.filter = filter
	f.handler = handler
	return nil
}

func command(t *testing.T, vin string, name protocol.CommandName) *mqtt.Message {
	t.Helper()
	cmd, err := protocol.NewCommand(vin, name, nil)
	require.NoError(t, err)
	raw, err := cmd.Marshal()
	require.NoError(t, err)
	return mqtt.NewMessage(topic.Encode(vin, topic.KindCommands), raw, 1, nil)
}

func TestHubSend(t *testing.T) {
	client := &fakeClient{}
	h := New("VIN1", client)

	env, err := protocol.NewEnvelope("VIN1", "location", protocol.Location{}, protocol.SeverityInfo)
	require.NoError(t, err)
	require.NoError(t, h.Send(context.Background(), topic.KindLocation, env, 0))

	hb, err := protocol.NewEnvelope("VIN1", "heartbeat", protocol.Heartbeat{Status: protocol.StatusOnline}, protocol.SeverityInfo)
	require.NoError(t, err)
	require.NoError(t, h.Send(context.Background(), topic.KindHeartbeatStatus, hb, 0))

	assert.Equal(t, []published{
		{"vehicle/VIN1/location", 0, false},
		{"vehicle/VIN1/heartbeat-status", 0, true},
	}, client.published)
}

func TestHubDispatchesCommands(t *testing.T) {
	client := &fakeClient{}
	h := New("VIN1", client)

	var got []protocol.CommandName
	require.NoError(t, h.Register(protocol.CommandAwaitAssignment, func(_ context.Context, cmd *protocol.Command) error {
		got = append(got, cmd.Command)
		return nil
	}))
	require.NoError(t, h.Register(protocol.CommandLoadMission, func(context.Context, *protocol.Command) error {
		return errors.New("boom")
	}))
	assert.Error(t, h.Register(protocol.CommandAwaitAssignment, nil))

	require.NoError(t, h.Start(context.Background()))
	assert.Equal(t, "vehicle/VIN1/commands", client.filter)

	ctx := context.Background()
	client.handler(ctx, command(t, "VIN1", protocol.CommandAwaitAssignment))
	client.handler(ctx, command(t, "VIN2", protocol.CommandAwaitAssignment))
	client.handler(ctx, command(t, "VIN1", protocol.CommandLoadMission))
	client.handler(ctx, command(t, "VIN1", "reboot"))
	client.handler(ctx, mqtt.NewMessage("vehicle/VIN1/commands", []byte("{"), 1, nil))

	assert.Equal(t, []protocol.CommandName{protocol.CommandAwaitAssignment}, got)
}
