// Package arraylock implements an array-based fair lock, kept in this
// tree as a classic FIFO-fair baseline for benchmarking stack.Treiber
// and friends against something other than sync.Mutex: unlike a plain
// mutex, an ArrayLock schedules waiters strictly in arrival order,
// which is a useful contrast when a lock-free stack's fairness (or lack
// of it) under contention is the thing being measured.
package arraylock

import (
	"runtime"
	"sync/atomic"
)

// Share is the state shared by every ArrayLock handle contending for
// the same lock.
type Share struct {
	flags []uint32
	tail  uint32
	size  uint32
}

// NewShare initializes the state shared by every contending goroutine,
// sized for up to concurrency of them.
func NewShare(concurrency uint32) *Share {
	share := &Share{
		size:  concurrency,
		flags: make([]uint32, concurrency),
	}
	share.flags[0] = 1
	return share
}

// ArrayLock is one goroutine's handle onto a Share. Each contending
// goroutine needs its own ArrayLock bound to the same Share via
// NewArrayLock -- unlike the Share, an ArrayLock's myIndex is not safe
// to mutate from more than one goroutine.
type ArrayLock struct {
	share   *Share
	myIndex uint32
}

// NewArrayLock returns a handle for one goroutine to contend on share.
func NewArrayLock(share *Share) *ArrayLock {
	return &ArrayLock{share: share}
}

// Lock acquires the lock, queuing in arrival order.
func (al *ArrayLock) Lock() {
	lock := al.share
	slot := (atomic.AddUint32(&lock.tail, 1) - 1) % lock.size
	al.myIndex = slot

	for atomic.LoadUint32(&lock.flags[slot]) == 0 {
		runtime.Gosched()
	}
}

// Unlock releases the lock, waking the next goroutine in arrival order.
func (al *ArrayLock) Unlock() {
	lock := al.share
	slot := al.myIndex

	atomic.StoreUint32(&lock.flags[slot], 0)
	nextSlot := (slot + 1) % lock.size
	atomic.StoreUint32(&lock.flags[nextSlot], 1)
}

// TryLock attempts to acquire the lock without blocking.
func (al *ArrayLock) TryLock() bool {
	lock := al.share
	tail := atomic.LoadUint32(&lock.tail)
	if atomic.LoadUint32(&lock.flags[tail%lock.size]) == 1 {
		if atomic.CompareAndSwapUint32(&lock.tail, tail, tail+1) {
			al.myIndex = tail % lock.size
			return true
		}
	}
	return false
}
