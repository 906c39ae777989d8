// Package app builds the cobra commands of the fleetpeer binaries. Every
// binary gets named flag sets, an optional config file, FLEETPEER_* environment
// overrides, .env loading and live log-level reloads.
package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	cliflag "k8s.io/component-base/cli/flag"
	"k8s.io/component-base/cli/globalflag"
	"k8s.io/component-base/term"

	"github.com/autopeer-io/fleetpeer/pkg/log"
)

// EnvPrefix prefixes every environment override, e.g. FLEETPEER_MQTT_BROKER.
const EnvPrefix = "FLEETPEER"

// RunFunc is the entry point invoked once options are loaded and validated.
type RunFunc func() error

// NamedFlagSetOptions is implemented by the options struct of a binary.
type NamedFlagSetOptions interface {
	Flags() cliflag.NamedFlagSets
	Complete() error
	Validate() error
}

// LoggerOptions is implemented by options that carry a log section.
type LoggerOptions interface {
	LoggerOptions() *log.Options
}

// App is a command-line application.
type App struct {
	name        string
	shortDesc   string
	description string
	options     NamedFlagSetOptions
	runFunc     RunFunc
	args        cobra.PositionalArgs
	noConfig    bool
	onReload    func(v *viper.Viper)

	v   *viper.Viper
	cmd *cobra.Command
}

// Option configures an App.
type Option func(*App)

func WithDescription(desc string) Option {
	return func(a *App) { a.description = desc }
}

func WithOptions(opts NamedFlagSetOptions) Option {
	return func(a *App) { a.options = opts }
}

func WithRunFunc(run RunFunc) Option {
	return func(a *App) { a.runFunc = run }
}

// WithDefaultValidArgs rejects positional arguments.
func WithDefaultValidArgs() Option {
	return func(a *App) { a.args = cobra.NoArgs }
}

// WithNoConfig disables the --config flag.
func WithNoConfig() Option {
	return func(a *App) { a.noConfig = true }
}

// WithReloadFunc is called after the config file changed on disk, in addition
// to the log level refresh every App performs.
func WithReloadFunc(fn func(v *viper.Viper)) Option {
	return func(a *App) { a.onReload = fn }
}

// NewApp creates an App and its cobra command.
func NewApp(name, shortDesc string, opts ...Option) *App {
	a := &App{name: name, shortDesc: shortDesc, v: viper.New()}
	for _, o := range opts {
		o(a)
	}
	a.buildCommand()
	return a
}

// Command returns the underlying cobra command.
func (a *App) Command() *cobra.Command {
	return a.cmd
}

// Run executes the command and exits non-zero on failure.
func (a *App) Run() {
	if err := a.cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func (a *App) buildCommand() {
	cmd := &cobra.Command{
		Use:           a.name,
		Short:         a.shortDesc,
		Long:          a.description,
		SilenceUsage:  true,
		SilenceErrors: false,
		Args:          a.args,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd)
		},
	}

	fs := cmd.Flags()
	var namedfs cliflag.NamedFlagSets
	if a.options != nil {
		namedfs = a.options.Flags()
	}
	if !a.noConfig {
		namedfs.FlagSet("global").String("config", "", "Path to a YAML, JSON or TOML configuration file.")
	}
	globalflag.AddGlobalFlags(namedfs.FlagSet("global"), cmd.Name())
	for _, f := range namedfs.FlagSets {
		fs.AddFlagSet(f)
	}

	cols, _, _ := term.TerminalSize(cmd.OutOrStdout())
	cliflag.SetUsageAndHelpFunc(cmd, namedfs, cols)

	a.cmd = cmd
}

func (a *App) run(cmd *cobra.Command) error {
	// A missing .env file is the common case.
	_ = godotenv.Load()

	if a.options != nil {
		if err := a.loadConfig(cmd); err != nil {
			return err
		}
		if o, ok := a.options.(LoggerOptions); ok {
			log.Init(o.LoggerOptions())
		}
		if err := a.options.Complete(); err != nil {
			return fmt.Errorf("complete options: %w", err)
		}
		if err := a.options.Validate(); err != nil {
			return err
		}
	}
	defer log.Sync()

	if a.runFunc == nil {
		return nil
	}
	return a.runFunc()
}

func (a *App) loadConfig(cmd *cobra.Command) error {
	v := a.v
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}

	if !a.noConfig {
		if file, _ := cmd.Flags().GetString("config"); file != "" {
			v.SetConfigFile(file)
			if err := v.ReadInConfig(); err != nil {
				return fmt.Errorf("read config file %s: %w", file, err)
			}
			a.watch()
		}
	}

	if err := v.Unmarshal(a.options); err != nil {
		return fmt.Errorf("decode configuration: %w", err)
	}
	return nil
}

func (a *App) watch() {
	a.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		log.Info("Configuration file changed", "file", e.Name)
		if level := a.v.GetString("log.level"); level != "" {
			if err := log.SetLevel(level); err != nil {
				log.Error(err, "Failed to apply log level", "level", level)
			}
		}
		if a.onReload != nil {
			a.onReload(a.v)
		}
	})
	a.v.WatchConfig()
}
