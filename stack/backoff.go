package stack

import (
	"sync/atomic"

	"github.com/ahrav/go-mcas/internal/backoff"
)

// Backoff is the Treiber stack with exponential backoff inserted after
// every failed CAS, trading a little latency for less contention on
// the shared top pointer.
type Backoff[T any] struct {
	top atomic.Pointer[treiberNode[T]]
}

// NewBackoff returns an empty Backoff stack.
func NewBackoff[T any]() *Backoff[T] { return &Backoff[T]{} }

func (s *Backoff[T]) Push(v T) {
	n := &treiberNode[T]{value: v}
	var bo *backoff.Backoff
	for {
		n.next = s.top.Load()
		if s.top.CompareAndSwap(n.next, n) {
			return
		}
		if bo == nil {
			bo = backoff.New(1, 32)
		}
		bo.Wait()
	}
}

func (s *Backoff[T]) Peek() (T, bool) {
	n := s.top.Load()
	if n == nil {
		var zero T
		return zero, false
	}
	return n.value, true
}

func (s *Backoff[T]) Pop() (T, bool) {
	var bo *backoff.Backoff
	for {
		n := s.top.Load()
		if n == nil {
			var zero T
			return zero, false
		}
		if s.top.CompareAndSwap(n, n.next) {
			return n.value, true
		}
		if bo == nil {
			bo = backoff.New(1, 32)
		}
		bo.Wait()
	}
}
