package stack

import (
	"math/rand"
	"runtime"
	"sync/atomic"

	"github.com/ahrav/go-mcas/internal/backoff"
	"github.com/ahrav/go-mcas/internal/threadid"
)

type operation uint8

const (
	opcodePush operation = iota
	opcodePop
)

// cell is one slot's published operation in the elimination array. spin
// bounds how long a passively-waiting cell polls its own wakeup flag
// before giving up and reclaiming its slot.
type cell[T any] struct {
	id        int
	operation operation
	node      atomic.Pointer[treiberNode[T]]
	wakeup    atomic.Bool
}

func (c *cell[T]) spin() {
	x := 0
	for n := 0; n < 10000; n++ {
		if c.wakeup.Load() {
			return
		}
		x = (x*24049 + 11) % 7
	}
	_ = x
}

func (c *cell[T]) reset() { c.wakeup.Store(false) }

// EliminationBackoff is the Treiber stack backed by an elimination
// array: on CAS failure a goroutine publishes its own operation at a
// slot and looks for an opposing operation to pair off with directly,
// bypassing the shared top pointer entirely when a match is found.
type EliminationBackoff[T any] struct {
	top   atomic.Pointer[treiberNode[T]]
	cells []atomic.Pointer[cell[T]]
	ids   *threadid.Allocator
}

// NewEliminationBackoff returns an empty elimination-backoff stack with
// an elimination array sized to the number of logical CPUs.
func NewEliminationBackoff[T any]() *EliminationBackoff[T] {
	n := runtime.NumCPU()
	return &EliminationBackoff[T]{
		cells: make([]atomic.Pointer[cell[T]], n),
		ids:   threadid.New(n),
	}
}

func (s *EliminationBackoff[T]) Peek() (T, bool) {
	n := s.top.Load()
	if n == nil {
		var zero T
		return zero, false
	}
	return n.value, true
}

func (s *EliminationBackoff[T]) Push(v T) {
	n := &treiberNode[T]{value: v}
	var c *cell[T]
	var lease *threadid.Lease
	var bo *backoff.Backoff
	defer func() {
		if lease != nil {
			s.ids.Release(lease)
		}
	}()

	for {
		n.next = s.top.Load()
		if s.top.CompareAndSwap(n.next, n) {
			return
		}

		if c == nil {
			l, ok := s.ids.Acquire()
			if !ok {
				bo = wait(bo)
				continue
			}
			lease = l
			c = &cell[T]{id: lease.ID() - 1, operation: opcodePush}
			c.node.Store(n)
		} else {
			c.reset()
		}

		if done, _ := s.collide(c); done {
			return
		}
	}
}

func (s *EliminationBackoff[T]) Pop() (T, bool) {
	var c *cell[T]
	var lease *threadid.Lease
	var bo *backoff.Backoff
	defer func() {
		if lease != nil {
			s.ids.Release(lease)
		}
	}()

	for {
		top := s.top.Load()
		if top == nil {
			var zero T
			return zero, false
		}
		if s.top.CompareAndSwap(top, top.next) {
			return top.value, true
		}

		if c == nil {
			l, ok := s.ids.Acquire()
			if !ok {
				bo = wait(bo)
				continue
			}
			lease = l
			c = &cell[T]{id: lease.ID() - 1, operation: opcodePop}
		} else {
			c.reset()
		}

		if done, matched := s.collide(c); done {
			return matched.value, true
		}
	}
}

func wait(bo *backoff.Backoff) *backoff.Backoff {
	if bo == nil {
		bo = backoff.New(1, 32)
	}
	bo.Wait()
	return bo
}

// collide runs one round of the elimination protocol for self, which
// has just failed its top-level CAS. It reports done=true if self's
// operation was resolved via elimination, along with the node the
// caller should read its result from for a matched pop.
func (s *EliminationBackoff[T]) collide(self *cell[T]) (done bool, matched *treiberNode[T]) {
	s.cells[self.id].Store(self)
	partner := s.pickPartner(self)
	if partner != nil && partner.operation != self.operation {
		observed := s.casCell(self.id, self, nil)
		if observed != self {
			return s.passiveCollide(self, observed)
		}
		return s.activeCollide(self, partner)
	}

	self.spin()
	observed := s.casCell(self.id, self, nil)
	if observed != self {
		return s.passiveCollide(self, observed)
	}
	return false, nil
}

func (s *EliminationBackoff[T]) casCell(index int, old, new *cell[T]) *cell[T] {
	for {
		cur := s.cells[index].Load()
		if cur != old {
			return cur
		}
		if s.cells[index].CompareAndSwap(cur, new) {
			return cur
		}
	}
}

func (s *EliminationBackoff[T]) pickPartner(self *cell[T]) *cell[T] {
	id := rand.Intn(len(s.cells))
	if id == self.id {
		return nil
	}
	p := s.cells[id].Load()
	if p != nil && p.id == id {
		return p
	}
	return nil
}

// activeCollide installs self into partner's slot, claiming the match.
// If self is a pop, it takes partner's published node directly and
// wakes partner out of its spin.
func (s *EliminationBackoff[T]) activeCollide(self, partner *cell[T]) (bool, *treiberNode[T]) {
	if !s.cells[partner.id].CompareAndSwap(partner, self) {
		return false, nil
	}
	if self.operation == opcodePop {
		n := partner.node.Load()
		partner.wakeup.Store(true)
		return true, n
	}
	return true, nil
}

// passiveCollide clears self's own slot after discovering that an
// active colluder (observed) installed itself there in self's place.
// If self is a pop, it takes the colluder's published node.
func (s *EliminationBackoff[T]) passiveCollide(self, observed *cell[T]) (bool, *treiberNode[T]) {
	if !s.cells[self.id].CompareAndSwap(observed, nil) {
		return false, nil
	}
	if self.operation == opcodePop {
		return true, observed.node.Load()
	}
	return true, nil
}
