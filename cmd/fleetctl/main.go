package main

import (
	"os"

	_ "go.uber.org/automaxprocs"

	"github.com/autopeer-io/fleetpeer/cmd/fleetctl/app"
)

func main() {
	if err := app.NewCommand(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}
