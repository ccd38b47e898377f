package threadid

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireIsDenseAndBounded(t *testing.T) {
	a := New(4)
	seen := map[int]bool{}
	var leases []*Lease
	for i := 0; i < 4; i++ {
		l, ok := a.Acquire()
		require.True(t, ok)
		require.False(t, seen[l.ID()], "id %d leased twice concurrently", l.ID())
		seen[l.ID()] = true
		assert.GreaterOrEqual(t, l.ID(), 1)
		assert.LessOrEqual(t, l.ID(), 4)
		leases = append(leases, l)
	}

	_, ok := a.Acquire()
	assert.False(t, ok, "a fifth concurrent lease must be refused, not blocked on")

	a.Release(leases[0])
	l, ok := a.Acquire()
	require.True(t, ok)
	assert.Equal(t, leases[0].ID(), l.ID())
}

func TestConcurrentAcquireNeverExceedsMax(t *testing.T) {
	const max = 8
	a := New(max)

	var wg sync.WaitGroup
	var mu sync.Mutex
	live := map[int]bool{}
	maxObserved := 0

	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l, ok := a.Acquire()
			if !ok {
				return
			}
			defer a.Release(l)

			mu.Lock()
			live[l.ID()] = true
			if len(live) > maxObserved {
				maxObserved = len(live)
			}
			mu.Unlock()

			mu.Lock()
			delete(live, l.ID())
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, maxObserved, max)
}
