package mission

import (
	"sync/atomic"

	"github.com/autopeer-io/fleetpeer/pkg/protocol"
)

// Session is the vehicle's execution state. The lock admits at most one route
// run at a time and only ever moves false -> true -> false.
type Session struct {
	locked  atomic.Bool
	current atomic.Pointer[protocol.MissionPayload]
}

// TryLock takes the simulation lock, reporting whether it was free.
func (s *Session) TryLock() bool {
	return s.locked.CompareAndSwap(false, true)
}

// Unlock releases the simulation lock. It reports false if the lock was not held.
func (s *Session) Unlock() bool {
	return s.locked.CompareAndSwap(true, false)
}

func (s *Session) Locked() bool {
	return s.locked.Load()
}

// Load records the most recently loaded mission.
func (s *Session) Load(m *protocol.MissionPayload) {
	s.current.Store(m)
}

// Current returns the most recently loaded mission, or nil.
func (s *Session) Current() *protocol.MissionPayload {
	return s.current.Load()
}
