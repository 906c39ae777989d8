package options

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/fleetpeer/pkg/mqtt"
)

func TestValidateAddress(t *testing.T) {
	assert.NoError(t, ValidateAddress("0.0.0.0:8080"))
	assert.NoError(t, ValidateAddress(":6379"))
	assert.Error(t, ValidateAddress("localhost"))
	assert.Error(t, ValidateAddress("localhost:http-alt"))
	assert.Error(t, ValidateAddress("localhost:70000"))
}

func TestMqttOptions(t *testing.T) {
	o := NewMqttOptions()
	assert.Empty(t, o.Validate())

	cfg := o.ToClientConfig()
	assert.Equal(t, uint16(60), cfg.KeepAlive)
	assert.Equal(t, mqtt.ProtocolV5, cfg.ProtocolVersion)
	assert.False(t, cfg.CleanStart)
}

func TestMqttOptionsValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(o *MqttOptions)
		want   string
	}{
		{"missing broker", func(o *MqttOptions) { o.Broker = "" }, "--mqtt.broker"},
		{"unknown protocol", func(o *MqttOptions) { o.ProtocolVersion = 3 }, "--mqtt.protocol-version"},
		{"short keep-alive", func(o *MqttOptions) { o.KeepAlive = time.Millisecond }, "--mqtt.keep-alive"},
		{"shared group on 3.1.1", func(o *MqttOptions) {
			o.ProtocolVersion = mqtt.ProtocolV311
			o.SharedGroup = "missionhub"
		}, "--mqtt.shared-group"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewMqttOptions()
			tt.modify(o)
			errs := o.Validate()
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0].Error(), tt.want)
		})
	}
}

func TestStoreOptions(t *testing.T) {
	assert.Empty(t, NewStoreOptions().Validate())
	assert.NotEmpty(t, (&StoreOptions{Backend: "sqlite"}).Validate())
	assert.Empty(t, NewBoltOptions().Validate())
	assert.Empty(t, NewMongoOptions().Validate())
	assert.Len(t, (&MongoOptions{}).Validate(), 2)
}

func TestMongoOptionsComplete(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://mongo:27017")
	o := NewMongoOptions()
	o.Complete()
	assert.Equal(t, "mongodb://mongo:27017", o.URI)

	o = &MongoOptions{URI: "mongodb://explicit:27017"}
	o.Complete()
	assert.Equal(t, "mongodb://explicit:27017", o.URI)
}

func TestRedisOptions(t *testing.T) {
	o := NewRedisOptions()
	assert.False(t, o.Enabled())
	assert.Empty(t, o.Validate())

	o.Addr = "bad"
	assert.True(t, o.Enabled())
	assert.NotEmpty(t, o.Validate())
}
