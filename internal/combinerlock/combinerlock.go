// Package combinerlock implements the non-blocking combiner-election
// lock used by stack.FlatCombining. Flat combining never waits on this
// lock the way a caller waits on a mutex: a goroutine that loses the
// TryLock race spins on its own request's ready flag instead of queuing
// for the lock itself, so there is never a wait queue to maintain and
// the lock reduces to a single test-and-set flag.
package combinerlock

import "sync/atomic"

// Lock elects at most one combiner at a time.
type Lock struct {
	held atomic.Bool
}

// NewLock returns a new, unheld combiner lock.
func NewLock() *Lock { return new(Lock) }

// TryLock attempts to become the combiner without blocking, returning
// true iff the caller won the election.
func (l *Lock) TryLock() bool { return l.held.CompareAndSwap(false, true) }

// Unlock relinquishes the combiner role.
func (l *Lock) Unlock() { l.held.Store(false) }

// IsFree reports whether no goroutine currently holds the combiner role.
func (l *Lock) IsFree() bool { return !l.held.Load() }
