package mission

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionLock(t *testing.T) {
	var s Session

	assert.False(t, s.Unlock())
	assert.True(t, s.TryLock())
	assert.False(t, s.TryLock())
	assert.True(t, s.Locked())
	assert.True(t, s.Unlock())
	assert.False(t, s.Locked())
}

func TestSessionLockAdmitsOneHolder(t *testing.T) {
	var (
		s       Session
		holders atomic.Int32
		wg      sync.WaitGroup
	)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.TryLock() {
				holders.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), holders.Load())
}
