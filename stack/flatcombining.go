package stack

import (
	"runtime"
	"sync/atomic"

	"github.com/ahrav/go-mcas/internal/combinerlock"
)

// combineRounds bounds how many times scanCombine re-reads the request
// queue before giving up the lock: enough passes to drain a burst of
// concurrent requests without letting one combiner run forever under
// sustained load.
const combineRounds = 20

type opKind uint8

const (
	opPush opKind = iota
	opPeek
	opPop
)

type op[T any] struct {
	next  atomic.Pointer[op[T]]
	kind  opKind
	value T
	ok    bool
	ready atomic.Bool
}

// FlatCombining batches concurrent operations behind a single combiner
// thread: every caller publishes its request into a lock-free stack of
// pending ops, then either wins a non-blocking TryLock and drains up to
// combineRounds worth of the queue against a private slice, or spins on
// its own request's ready flag until some other caller's pass covers
// it.
type FlatCombining[T any] struct {
	queue atomic.Pointer[op[T]]
	lock  *combinerlock.Lock
	data  []T
}

// NewFlatCombining returns an empty flat-combining stack.
func NewFlatCombining[T any]() *FlatCombining[T] {
	return &FlatCombining[T]{lock: combinerlock.NewLock()}
}

func (s *FlatCombining[T]) Push(v T) {
	o := &op[T]{kind: opPush, value: v}
	s.process(o)
}

func (s *FlatCombining[T]) Peek() (T, bool) {
	o := &op[T]{kind: opPeek}
	s.process(o)
	return o.value, o.ok
}

func (s *FlatCombining[T]) Pop() (T, bool) {
	o := &op[T]{kind: opPop}
	s.process(o)
	return o.value, o.ok
}

func (s *FlatCombining[T]) enqueue(o *op[T]) {
	for {
		head := s.queue.Load()
		o.next.Store(head)
		if s.queue.CompareAndSwap(head, o) {
			return
		}
	}
}

func (s *FlatCombining[T]) process(o *op[T]) {
	s.enqueue(o)
	for !o.ready.Load() {
		if s.lock.TryLock() {
			s.scanCombine()
			s.lock.Unlock()
			return
		}
		runtime.Gosched()
	}
}

// scanCombine runs while holding the combiner lock: it repeatedly reads
// the queue's current head, applies every not-yet-ready op it finds
// between there and the previous round's head, then detaches that
// prefix so future rounds (by this combiner or the next) don't redo it.
func (s *FlatCombining[T]) scanCombine() {
	var lastHead *op[T]
	for round := 0; round < combineRounds; round++ {
		head := s.queue.Load()
		if head == lastHead {
			return
		}
		for o := head; o != lastHead; o = o.next.Load() {
			if !o.ready.Load() {
				s.invoke(o)
				o.ready.Store(true)
			}
		}
		head.next.Store(nil)
		lastHead = head
	}
}

func (s *FlatCombining[T]) invoke(o *op[T]) {
	switch o.kind {
	case opPush:
		s.data = append(s.data, o.value)
	case opPeek:
		if n := len(s.data); n > 0 {
			o.value, o.ok = s.data[n-1], true
		}
	case opPop:
		if n := len(s.data); n > 0 {
			o.value, o.ok = s.data[n-1], true
			s.data = s.data[:n-1]
		}
	}
}
