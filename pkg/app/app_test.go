package app

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/autopeer-io/fleetpeer/pkg/log"
	"github.com/autopeer-io/fleetpeer/pkg/options"
)

type testOptions struct {
	Mqtt *options.MqttOptions `mapstructure:"mqtt"`
	Log  *log.Options         `mapstructure:"log"`

	completed bool
	invalid   bool
}

func newTestOptions() *testOptions {
	return &testOptions{Mqtt: options.NewMqttOptions(), Log: log.NewOptions()}
}

func (o *testOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	o.Mqtt.AddFlags(fss.FlagSet("mqtt"))
	o.Log.AddFlags(fss.FlagSet("log"))
	return fss
}

func (o *testOptions) Complete() error {
	o.completed = true
	return nil
}

func (o *testOptions) Validate() error {
	if o.invalid {
		return errors.New("invalid")
	}
	return nil
}

func (o *testOptions) LoggerOptions() *log.Options { return o.Log }

func TestAppLoadsFlagsConfigAndEnv(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("mqtt:\n  username: fromfile\n  keep-alive: 30s\n"), 0o600))
	t.Setenv("FLEETPEER_MQTT_PASSWORD", "fromenv")

	opts := newTestOptions()
	ran := false
	a := NewApp("test-app", "test", WithOptions(opts), WithDefaultValidArgs(), WithRunFunc(func() error {
		ran = true
		return nil
	}))

	a.Command().SetArgs([]string{"--config", cfgFile, "--mqtt.broker", "tcp://broker:1883"})
	require.NoError(t, a.Command().Execute())

	assert.True(t, ran)
	assert.True(t, opts.completed)
	assert.Equal(t, "tcp://broker:1883", opts.Mqtt.Broker)
	assert.Equal(t, "fromfile", opts.Mqtt.Username)
	assert.Equal(t, "fromenv", opts.Mqtt.Password)
	assert.Equal(t, 30*time.Second, opts.Mqtt.KeepAlive)
}

func TestAppValidationFailureSkipsRun(t *testing.T) {
	opts := newTestOptions()
	opts.invalid = true
	ran := false
	a := NewApp("test-app", "test", WithOptions(opts), WithNoConfig(), WithRunFunc(func() error {
		ran = true
		return nil
	}))
	a.Command().SetArgs([]string{})
	a.Command().SilenceErrors = true

	assert.Error(t, a.Command().Execute())
	assert.False(t, ran)
}

func TestAppRejectsPositionalArgs(t *testing.T) {
	a := NewApp("test-app", "test", WithOptions(newTestOptions()), WithDefaultValidArgs())
	a.Command().SetArgs([]string{"extra"})
	a.Command().SilenceErrors = true
	assert.Error(t, a.Command().Execute())
}
