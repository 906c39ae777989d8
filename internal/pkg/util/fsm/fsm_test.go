package fsm

import (
	"context"
	"errors"
	"testing"

	"github.com/looplab/fsm"
	"github.com/stretchr/testify/assert"
)

func TestWrapEventPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	f := fsm.NewFSM("a",
		fsm.Events{{Name: "go", Src: []string{"a"}, Dst: "b"}},
		fsm.Callbacks{
			"enter_b": WrapEvent(func(context.Context, *fsm.Event) error { return boom }),
		},
	)

	err := f.Event(context.Background(), "go")
	assert.ErrorIs(t, err, boom)
}

func TestIgnoreNoTransition(t *testing.T) {
	assert.NoError(t, IgnoreNoTransition(fsm.NoTransitionError{}))
	assert.NoError(t, IgnoreNoTransition(nil))

	err := fsm.InvalidEventError{Event: "go", State: "b"}
	assert.Equal(t, err, IgnoreNoTransition(err))
}
