package app

import (
	"fmt"

	genericapiserver "k8s.io/apiserver/pkg/server"

	"github.com/autopeer-io/fleetpeer/cmd/cpeer-vehicle-agent/app/options"
	"github.com/autopeer-io/fleetpeer/pkg/app"
)

const (
	commandName = "cpeer-vehicle-agent"
	commandDesc = `The Fleetpeer vehicle agent runs on the vehicle. It reports heartbeats and
telemetry to the mission hub, asks for dispatched work and replays the route
of every mission it is given.`
)

func NewApp() *app.App {
	opts := options.NewAgentOptions()
	application := app.NewApp(
		commandName,
		"Launch a Fleetpeer vehicle agent",
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithDefaultValidArgs(),
		app.WithRunFunc(run(opts)),
	)
	return application
}

func run(opts *options.AgentOptions) app.RunFunc {
	return func() error {
		ctx := genericapiserver.SetupSignalContext()

		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		agent, err := cfg.NewAgent()
		if err != nil {
			return fmt.Errorf("failed to create agent: %w", err)
		}

		return agent.Run(ctx)
	}
}
