package app

import (
	"fmt"

	genericapiserver "k8s.io/apiserver/pkg/server"

	"github.com/autopeer-io/fleetpeer/cmd/cpeer-missionhub/app/options"
	"github.com/autopeer-io/fleetpeer/pkg/app"
)

const (
	commandName = "cpeer-missionhub"
	commandDesc = `The Fleetpeer mission hub consumes every vehicle subject from the MQTT
broker, keeps mission duties and their audit trail, answers vehicle demands
and serves the operator API and live dashboard socket.`
)

func NewApp() *app.App {
	opts := options.NewMissionHubOptions()
	application := app.NewApp(
		commandName,
		"Launch a Fleetpeer mission hub",
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithDefaultValidArgs(),
		app.WithRunFunc(run(opts)),
	)
	return application
}

func run(opts *options.MissionHubOptions) app.RunFunc {
	return func() error {
		ctx := genericapiserver.SetupSignalContext()

		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		hub, err := cfg.NewMissionHub(ctx)
		if err != nil {
			return fmt.Errorf("failed to create mission hub: %w", err)
		}

		return hub.Run(ctx)
	}
}
