package options

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	o := NewAgentOptions()
	require.NoError(t, o.Complete())
	assert.NoError(t, o.Validate())

	o.Vehicle.VIN = "VIN1"
	cfg, err := o.Config()
	require.NoError(t, err)
	assert.Equal(t, "VIN1", cfg.VIN)
	assert.Equal(t, 500*time.Millisecond, cfg.Pacing)
	assert.Equal(t, 9.0, cfg.Altitude)
}

func TestValidateIntervals(t *testing.T) {
	o := NewAgentOptions()
	o.Vehicle.Pacing = -time.Second
	o.Vehicle.HeartbeatInterval = 0

	err := o.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--vehicle.pacing")
	assert.Contains(t, err.Error(), "--vehicle.heartbeat-interval")
}
