package fsm

import (
	"context"
	"errors"

	"github.com/looplab/fsm"
)

func WrapEvent(fn func(ctx context.Context, event *fsm.Event) error) fsm.Callback {
	return func(ctx context.Context, event *fsm.Event) {
		if err := fn(ctx, event); err != nil {
			event.Err = err
		}
	}
}

// IgnoreNoTransition drops the error looplab returns when an event leaves the
// state unchanged.
func IgnoreNoTransition(err error) error {
	var noTransition fsm.NoTransitionError
	if errors.As(err, &noTransition) {
		return nil
	}
	return err
}
