package options

import (
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
)

var _ IOptions = (*RedisOptions)(nil)

// RedisOptions configures the optional cross-replica fan-out relay.
type RedisOptions struct {
	Addr     string `json:"addr" mapstructure:"addr"`
	Password string `json:"password" mapstructure:"password"`
	DB       int    `json:"db" mapstructure:"db"`

	// Channel is the pub/sub channel notifications are relayed on.
	Channel string `json:"channel" mapstructure:"channel"`
}

// NewRedisOptions creates a RedisOptions object with the relay disabled.
func NewRedisOptions() *RedisOptions {
	return &RedisOptions{Channel: "fleetpeer:notifications"}
}

// Enabled reports whether a Redis address was configured.
func (o *RedisOptions) Enabled() bool {
	return o != nil && o.Addr != ""
}

func (o *RedisOptions) Validate() []error {
	if !o.Enabled() {
		return nil
	}
	errors := []error{}
	if err := ValidateAddress(o.Addr); err != nil {
		errors = append(errors, err)
	}
	return errors
}

func (o *RedisOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Addr, "redis.addr", o.Addr, "Redis address for relaying live notifications across replicas. Empty disables the relay.")
	fs.StringVar(&o.Password, "redis.password", o.Password, "Redis password.")
	fs.IntVar(&o.DB, "redis.db", o.DB, "Redis database number.")
	fs.StringVar(&o.Channel, "redis.channel", o.Channel, "Redis pub/sub channel for live notifications.")
}

// NewClient builds a Redis client from the options.
func (o *RedisOptions) NewClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     o.Addr,
		Password: o.Password,
		DB:       o.DB,
	})
}
