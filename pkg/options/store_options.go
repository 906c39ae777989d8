package options

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
)

// Supported persistence backends.
const (
	StoreMemory = "memory"
	StoreBolt   = "bolt"
	StoreMongo  = "mongo"
)

var (
	_ IOptions = (*StoreOptions)(nil)
	_ IOptions = (*MongoOptions)(nil)
	_ IOptions = (*BoltOptions)(nil)
)

// StoreOptions selects the persistence backend for missions and their events.
type StoreOptions struct {
	Backend string `json:"backend" mapstructure:"backend"`
}

// NewStoreOptions creates a StoreOptions object with default parameters.
func NewStoreOptions() *StoreOptions {
	return &StoreOptions{Backend: StoreBolt}
}

func (o *StoreOptions) Validate() []error {
	if o == nil {
		return nil
	}
	switch o.Backend {
	case StoreMemory, StoreBolt, StoreMongo:
		return nil
	default:
		return []error{fmt.Errorf("--store.backend must be one of %s, %s, %s", StoreMemory, StoreBolt, StoreMongo)}
	}
}

func (o *StoreOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Backend, "store.backend", o.Backend, "Persistence backend: memory, bolt or mongo.")
}

// MongoOptions contains the MongoDB connection settings.
type MongoOptions struct {
	URI      string        `json:"uri" mapstructure:"uri"`
	Database string        `json:"database" mapstructure:"database"`
	Timeout  time.Duration `json:"timeout" mapstructure:"timeout"`
}

// NewMongoOptions creates a MongoOptions object with default parameters.
func NewMongoOptions() *MongoOptions {
	return &MongoOptions{
		URI:      "mongodb://localhost:27017",
		Database: "fleetpeer",
		Timeout:  10 * time.Second,
	}
}

// Complete fills the URI from MONGO_URI when it was left at its default.
func (o *MongoOptions) Complete() {
	if uri := os.Getenv("MONGO_URI"); uri != "" && o.URI == NewMongoOptions().URI {
		o.URI = uri
	}
}

func (o *MongoOptions) Validate() []error {
	if o == nil {
		return nil
	}
	errors := []error{}
	if o.URI == "" {
		errors = append(errors, fmt.Errorf("--mongo.uri is required"))
	}
	if o.Database == "" {
		errors = append(errors, fmt.Errorf("--mongo.database is required"))
	}
	return errors
}

func (o *MongoOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.URI, "mongo.uri", o.URI, "MongoDB connection URI. Falls back to $MONGO_URI.")
	fs.StringVar(&o.Database, "mongo.database", o.Database, "MongoDB database holding mission duties and events.")
	fs.DurationVar(&o.Timeout, "mongo.timeout", o.Timeout, "Timeout for connecting to MongoDB.")
}

// BoltOptions contains the embedded database settings.
type BoltOptions struct {
	Path string `json:"path" mapstructure:"path"`
}

// NewBoltOptions creates a BoltOptions object with default parameters.
func NewBoltOptions() *BoltOptions {
	return &BoltOptions{Path: "fleetpeer.db"}
}

func (o *BoltOptions) Validate() []error {
	if o == nil {
		return nil
	}
	if o.Path == "" {
		return []error{fmt.Errorf("--bolt.path is required")}
	}
	return nil
}

func (o *BoltOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Path, "bolt.path", o.Path, "Path of the embedded bbolt database file.")
}
