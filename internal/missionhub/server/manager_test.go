package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type blockingServer struct{ stopped chan struct{} }

func (b *blockingServer) Start(ctx context.Context) error {
	<-ctx.Done()
	close(b.stopped)
	return nil
}

type failingServer struct{}

func (failingServer) Start(context.Context) error { return errors.New("bind: address in use") }

func TestManagerStopsOthersOnFailure(t *testing.T) {
	b := &blockingServer{stopped: make(chan struct{})}
	m := NewManager(b, nil, failingServer{})

	err := m.Start(context.Background())
	assert.ErrorContains(t, err, "address in use")

	select {
	case <-b.stopped:
	case <-time.After(time.Second):
		t.Fatal("blocking server was not stopped")
	}
}

func TestManagerStopsOnCancel(t *testing.T) {
	b := &blockingServer{stopped: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, NewManager(b).Start(ctx))
}
