package options

import (
	"fmt"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/autopeer-io/fleetpeer/internal/missionhub"
	"github.com/autopeer-io/fleetpeer/internal/missionhub/router"
	"github.com/autopeer-io/fleetpeer/pkg/app"
	"github.com/autopeer-io/fleetpeer/pkg/log"
	"github.com/autopeer-io/fleetpeer/pkg/options"
)

type MissionHubOptions struct {
	HttpOptions  *options.HttpOptions  `json:"http" mapstructure:"http"`
	MqttOptions  *options.MqttOptions  `json:"mqtt" mapstructure:"mqtt"`
	StoreOptions *options.StoreOptions `json:"store" mapstructure:"store"`
	BoltOptions  *options.BoltOptions  `json:"bolt" mapstructure:"bolt"`
	MongoOptions *options.MongoOptions `json:"mongo" mapstructure:"mongo"`
	RedisOptions *options.RedisOptions `json:"redis" mapstructure:"redis"`
	Router       *RouterOptions        `json:"router" mapstructure:"router"`
	Log          *log.Options          `json:"log" mapstructure:"log"`
}

// RouterOptions tunes the topic router.
type RouterOptions struct {
	Lanes int `json:"lanes" mapstructure:"lanes"`
}

var (
	_ app.NamedFlagSetOptions = (*MissionHubOptions)(nil)
	_ app.LoggerOptions       = (*MissionHubOptions)(nil)
)

func NewMissionHubOptions() *MissionHubOptions {
	o := &MissionHubOptions{
		HttpOptions:  options.NewHttpOptions(),
		MqttOptions:  options.NewMqttOptions(),
		StoreOptions: options.NewStoreOptions(),
		BoltOptions:  options.NewBoltOptions(),
		MongoOptions: options.NewMongoOptions(),
		RedisOptions: options.NewRedisOptions(),
		Router:       &RouterOptions{Lanes: router.DefaultLanes},
		Log:          log.NewOptions(),
	}

	return o
}

func (o *MissionHubOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	o.HttpOptions.AddFlags(fss.FlagSet("http"))
	o.MqttOptions.AddFlags(fss.FlagSet("mqtt"))
	o.StoreOptions.AddFlags(fss.FlagSet("store"))
	o.BoltOptions.AddFlags(fss.FlagSet("store"))
	o.MongoOptions.AddFlags(fss.FlagSet("store"))
	o.RedisOptions.AddFlags(fss.FlagSet("redis"))
	fss.FlagSet("router").IntVar(&o.Router.Lanes, "router.lanes", o.Router.Lanes, "Number of per-vehicle router workers.")
	o.Log.AddFlags(fss.FlagSet("log"))
	return fss
}

func (o *MissionHubOptions) LoggerOptions() *log.Options {
	return o.Log
}

func (o *MissionHubOptions) Complete() error {
	o.MongoOptions.Complete()
	return nil
}

func (o *MissionHubOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.HttpOptions.Validate()...)
	errs = append(errs, o.MqttOptions.Validate()...)
	errs = append(errs, o.StoreOptions.Validate()...)
	switch o.StoreOptions.Backend {
	case options.StoreBolt:
		errs = append(errs, o.BoltOptions.Validate()...)
	case options.StoreMongo:
		errs = append(errs, o.MongoOptions.Validate()...)
	}
	errs = append(errs, o.RedisOptions.Validate()...)
	if o.Router.Lanes < 1 {
		errs = append(errs, fmt.Errorf("--router.lanes must be at least 1"))
	}
	errs = append(errs, o.Log.Validate()...)
	return utilerrors.NewAggregate(errs)
}

func (o *MissionHubOptions) Config() (*missionhub.Config, error) {
	return &missionhub.Config{
		HttpOptions:  o.HttpOptions,
		MqttOptions:  o.MqttOptions,
		StoreOptions: o.StoreOptions,
		BoltOptions:  o.BoltOptions,
		MongoOptions: o.MongoOptions,
		RedisOptions: o.RedisOptions,
		Lanes:        o.Router.Lanes,
	}, nil
}
