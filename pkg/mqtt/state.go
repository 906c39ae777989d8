package mqtt

import "sync/atomic"

// ConnectionState is the broker connection lifecycle.
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	// StateConsuming means connected with every registered filter subscribed.
	StateConsuming
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateConsuming:
		return "consuming"
	default:
		return "unknown"
	}
}

type stateTracker struct {
	v        atomic.Int32
	onChange func(ConnectionState)
}

func (t *stateTracker) set(s ConnectionState) {
	if old := ConnectionState(t.v.Swap(int32(s))); old != s && t.onChange != nil {
		t.onChange(s)
	}
}

func (t *stateTracker) get() ConnectionState {
	return ConnectionState(t.v.Load())
}
