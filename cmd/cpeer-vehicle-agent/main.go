package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/autopeer-io/fleetpeer/cmd/cpeer-vehicle-agent/app"
)

func main() {
	app.NewApp().Run()
}
