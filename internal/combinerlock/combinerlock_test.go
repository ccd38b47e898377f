package combinerlock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTryLockOnlySucceedsOnce(t *testing.T) {
	l := NewLock()
	assert.True(t, l.TryLock())
	assert.False(t, l.TryLock())
	l.Unlock()
	assert.True(t, l.TryLock())
}

func TestIsFree(t *testing.T) {
	l := NewLock()
	assert.True(t, l.IsFree())
	l.TryLock()
	assert.False(t, l.IsFree())
	l.Unlock()
	assert.True(t, l.IsFree())
}

func TestConcurrentMutualExclusion(t *testing.T) {
	l := NewLock()
	const goroutines = 32
	const iterations = 500
	counter := 0

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				for !l.TryLock() {
				}
				counter++
				l.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, goroutines*iterations, counter)
}
