package arraylock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTryLock(t *testing.T) {
	share := NewShare(4)
	a := NewArrayLock(share)
	b := NewArrayLock(share)

	assert.True(t, a.TryLock())
	assert.False(t, b.TryLock())
	a.Unlock()
	assert.True(t, b.TryLock())
}

func TestConcurrentMutualExclusion(t *testing.T) {
	const goroutines = 16
	const iterations = 500
	share := NewShare(goroutines)
	counter := 0

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			l := NewArrayLock(share)
			for j := 0; j < iterations; j++ {
				l.Lock()
				counter++
				l.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, goroutines*iterations, counter)
}
