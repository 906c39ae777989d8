package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/autopeer-io/fleetpeer/cmd/cpeer-missionhub/app"
)

func main() {
	app.NewApp().Run()
}
