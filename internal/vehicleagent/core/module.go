package core

import (
	"context"

	"github.com/autopeer-io/fleetpeer/pkg/protocol"
)

// HandlerFunc processes one command addressed to the vehicle.
type HandlerFunc func(ctx context.Context, cmd *protocol.Command) error

// Module is a unit of agent behavior wired to the bus at startup.
type Module interface {
	Name() string

	Setup(ctx context.Context, hal HAL, sender Sender) error

	// Routes maps the commands the module handles.
	Routes() map[protocol.CommandName]HandlerFunc
}

// Runner is a module with a background loop.
type Runner interface {
	Run(ctx context.Context) error
}

// ConnectionAware modules are told when the broker connection is up: once
// after startup (first=true) and after every reconnect.
type ConnectionAware interface {
	OnConnected(ctx context.Context, first bool)
}
