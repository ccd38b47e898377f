// Package exchanger implements a lock-free, timed rendez-vous point for
// exactly two goroutines to swap values: whichever calls Exchange first
// waits (bounded by a timeout or a context deadline) for a second
// caller to show up and trade.
package exchanger

import (
	"context"
	"sync/atomic"
	"time"
)

type phase uint8

const (
	empty phase = iota
	waiting
	busy
)

type box[T any] struct{ v T }

// state is the combined (value, phase) word an Exchanger swaps
// atomically, the way AtomicStampedReference pairs a reference with a
// version stamp -- packed here into one struct behind one
// atomic.Pointer so a compare-and-swap can check both together.
type state[T any] struct {
	val   *box[T]
	phase phase
}

// Exchanger is a single-slot exchange point for values of type T.
type Exchanger[T any] struct {
	current atomic.Pointer[state[T]]
}

// New returns an empty Exchanger.
func New[T any]() *Exchanger[T] {
	e := &Exchanger[T]{}
	e.current.Store(&state[T]{phase: empty})
	return e
}

// Exchange offers v and waits for a peer's Exchange call to collect it
// and hand back its own value, for at most timeout (or forever, if
// timeout <= 0). It reports ok=false with a nil error on timeout, and a
// non-nil error (ctx.Err()) if ctx is cancelled first.
func (e *Exchanger[T]) Exchange(ctx context.Context, v T, timeout time.Duration) (peer T, ok bool, err error) {
	var zero T
	our := &box[T]{v: v}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		if cerr := ctx.Err(); cerr != nil {
			return zero, false, cerr
		}

		cur := e.current.Load()
		switch cur.phase {
		case empty:
			next := &state[T]{val: our, phase: waiting}
			if e.current.CompareAndSwap(cur, next) {
				return e.awaitPartner(ctx, deadline)
			}
		case waiting:
			next := &state[T]{val: our, phase: busy}
			if e.current.CompareAndSwap(cur, next) {
				return cur.val.v, true, nil
			}
		case busy:
			// A different pair is mid-handoff; fall through and retry.
		}

		if pastDeadline(deadline) {
			return zero, false, nil
		}
	}
}

// awaitPartner spins after installing our own offer, waiting for a
// second caller to transition the slot to busy. On timeout or
// cancellation it withdraws its offer by swinging the slot back to
// empty; if a partner takes the offer first, that swing fails and the
// exchange completes with the partner's value instead.
func (e *Exchanger[T]) awaitPartner(ctx context.Context, deadline time.Time) (peer T, ok bool, err error) {
	var zero T
	for {
		latest := e.current.Load()
		if latest.phase == busy {
			theirs := latest.val
			e.current.Store(&state[T]{phase: empty})
			return theirs.v, true, nil
		}
		cerr := ctx.Err()
		if cerr == nil && !pastDeadline(deadline) {
			continue
		}
		if e.current.CompareAndSwap(latest, &state[T]{phase: empty}) {
			return zero, false, cerr
		}
	}
}

func pastDeadline(deadline time.Time) bool {
	return !deadline.IsZero() && time.Now().After(deadline)
}
