package options

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/fleetpeer/pkg/options"
)

func TestDefaultsAreValid(t *testing.T) {
	o := NewMissionHubOptions()
	require.NoError(t, o.Complete())
	assert.NoError(t, o.Validate())

	cfg, err := o.Config()
	require.NoError(t, err)
	assert.Equal(t, o.Router.Lanes, cfg.Lanes)
	assert.Same(t, o.MqttOptions, cfg.MqttOptions)
}

func TestValidateAggregatesErrors(t *testing.T) {
	o := NewMissionHubOptions()
	o.StoreOptions.Backend = options.StoreMongo
	o.MongoOptions.URI = ""
	o.Router.Lanes = 0
	o.HttpOptions.Addr = "nope"

	err := o.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--mongo.uri")
	assert.Contains(t, err.Error(), "--router.lanes")
}

func TestFlagsRegistered(t *testing.T) {
	fss := NewMissionHubOptions().Flags()
	for _, name := range []string{"mqtt.broker", "store.backend", "bolt.path", "mongo.uri", "redis.addr", "router.lanes", "http.addr"} {
		found := false
		for _, fs := range fss.FlagSets {
			if fs.Lookup(name) != nil {
				found = true
			}
		}
		assert.True(t, found, name)
	}
}
