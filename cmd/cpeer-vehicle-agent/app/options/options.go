package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/autopeer-io/fleetpeer/internal/vehicleagent"
	"github.com/autopeer-io/fleetpeer/internal/vehicleagent/mission"
	"github.com/autopeer-io/fleetpeer/internal/vehicleagent/telemetry"
	"github.com/autopeer-io/fleetpeer/pkg/app"
	"github.com/autopeer-io/fleetpeer/pkg/log"
	"github.com/autopeer-io/fleetpeer/pkg/options"
	"github.com/autopeer-io/fleetpeer/pkg/protocol"
)

type AgentOptions struct {
	MqttOptions *options.MqttOptions `json:"mqtt" mapstructure:"mqtt"`
	Vehicle     *VehicleOptions      `json:"vehicle" mapstructure:"vehicle"`
	Log         *log.Options         `json:"log" mapstructure:"log"`
}

// VehicleOptions describes the simulated vehicle.
type VehicleOptions struct {
	VIN               string        `json:"vin" mapstructure:"vin"`
	Firmware          string        `json:"firmware" mapstructure:"firmware"`
	Pacing            time.Duration `json:"pacing" mapstructure:"pacing"`
	Altitude          float64       `json:"altitude" mapstructure:"altitude"`
	HeartbeatInterval time.Duration `json:"heartbeat-interval" mapstructure:"heartbeat-interval"`
	TelemetryInterval time.Duration `json:"telemetry-interval" mapstructure:"telemetry-interval"`
}

var (
	_ app.NamedFlagSetOptions = (*AgentOptions)(nil)
	_ app.LoggerOptions       = (*AgentOptions)(nil)
)

func NewAgentOptions() *AgentOptions {
	o := &AgentOptions{
		MqttOptions: options.NewMqttOptions(),
		Vehicle: &VehicleOptions{
			Firmware:          "v1.0.0",
			Pacing:            mission.DefaultPacing,
			Altitude:          protocol.DefaultAltitude,
			HeartbeatInterval: telemetry.DefaultHeartbeatInterval,
			TelemetryInterval: telemetry.DefaultTelemetryInterval,
		},
		Log: log.NewOptions(),
	}

	return o
}

func (o *AgentOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	o.MqttOptions.AddFlags(fss.FlagSet("mqtt"))
	o.Vehicle.AddFlags(fss.FlagSet("vehicle"))
	o.Log.AddFlags(fss.FlagSet("log"))
	return fss
}

func (o *AgentOptions) LoggerOptions() *log.Options {
	return o.Log
}

func (o *AgentOptions) Complete() error {
	return nil
}

func (o *AgentOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.MqttOptions.Validate()...)
	errs = append(errs, o.Vehicle.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	return utilerrors.NewAggregate(errs)
}

func (o *AgentOptions) Config() (*vehicleagent.Config, error) {
	return &vehicleagent.Config{
		MqttOptions:       o.MqttOptions,
		VIN:               o.Vehicle.VIN,
		Firmware:          o.Vehicle.Firmware,
		Pacing:            o.Vehicle.Pacing,
		Altitude:          o.Vehicle.Altitude,
		HeartbeatInterval: o.Vehicle.HeartbeatInterval,
		TelemetryInterval: o.Vehicle.TelemetryInterval,
	}, nil
}

func (o *VehicleOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.VIN, "vehicle.vin", o.VIN, "Vehicle identification number. Falls back to $CPEER_VEHICLE_ID, then /etc/fleetpeer/vin.")
	fs.StringVar(&o.Firmware, "vehicle.firmware", o.Firmware, "Firmware version the vehicle reports.")
	fs.DurationVar(&o.Pacing, "vehicle.pacing", o.Pacing, "Delay between two location updates of a mission run.")
	fs.Float64Var(&o.Altitude, "vehicle.altitude", o.Altitude, "Altitude used for route coordinates that carry none.")
	fs.DurationVar(&o.HeartbeatInterval, "vehicle.heartbeat-interval", o.HeartbeatInterval, "Interval between heartbeats.")
	fs.DurationVar(&o.TelemetryInterval, "vehicle.telemetry-interval", o.TelemetryInterval, "Interval between telemetry samples.")
}

func (o *VehicleOptions) Validate() []error {
	errs := []error{}
	if o.Pacing < 0 {
		errs = append(errs, fmt.Errorf("--vehicle.pacing must not be negative"))
	}
	if o.HeartbeatInterval <= 0 {
		errs = append(errs, fmt.Errorf("--vehicle.heartbeat-interval must be positive"))
	}
	if o.TelemetryInterval <= 0 {
		errs = append(errs, fmt.Errorf("--vehicle.telemetry-interval must be positive"))
	}
	return errs
}
