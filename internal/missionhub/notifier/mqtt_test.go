package notifier

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgmqtt "github.com/autopeer-io/fleetpeer/pkg/mqtt"
	"github.com/autopeer-io/fleetpeer/pkg/protocol"
)

type publishCall struct {
	topic   string
	qos     byte
	retain  bool
	payload []byte
}

type fakeClient struct {
	pkgmqtt.Client
	calls []publishCall
	err   error
}

func (f *fakeClient) Publish(_ context.Context, topic string, qos byte, retain bool, payload []byte) error {
	f.calls = append(f.calls, publishCall{topic, qos, retain, payload})
	return f.err
}

func TestNotify(t *testing.T) {
	client := &fakeClient{}
	n := NewMQTTNotifier(client)

	params := protocol.AssignmentStatus{IsThereDispatchedTask: false}
	require.NoError(t, n.Notify(context.Background(), "VIN1", protocol.CommandAwaitAssignment, params))

	require.Len(t, client.calls, 1)
	call := client.calls[0]
	assert.Equal(t, "vehicle/VIN1/commands", call.topic)
	assert.Equal(t, byte(1), call.qos)
	assert.False(t, call.retain)

	cmd, err := protocol.ParseCommand(call.payload)
	require.NoError(t, err)
	assert.Equal(t, "VIN1", cmd.VIN)
	assert.Equal(t, protocol.CommandAwaitAssignment, cmd.Command)
	assert.JSONEq(t, `{"isThereDispatchedTask":false}`, string(cmd.Params))
	assert.NotZero(t, cmd.Timestamp)
}

func TestNotifyPublishError(t *testing.T) {
	client := &fakeClient{err: errors.New("not connected")}
	err := NewMQTTNotifier(client).Notify(context.Background(), "VIN1", protocol.CommandLoadMission, nil)
	assert.ErrorContains(t, err, "not connected")
}
