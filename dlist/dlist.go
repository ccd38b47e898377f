// Package dlist implements a lock-free doubly-linked list: every
// structural edit (insert, remove, clear) is a single mcas.Casn
// transaction over the affected node's prev/next links and the list's
// size counter, so a reader never observes a torn splice.
package dlist

import (
	"fmt"
	"sync/atomic"

	"github.com/ahrav/go-mcas/aref"
	"github.com/ahrav/go-mcas/internal/backoff"
	"github.com/ahrav/go-mcas/mcas"
)

type node[E any] struct {
	prev, next *aref.Ref[*node[E]]
	value      atomic.Pointer[E]
}

func newSentinel[E any]() *node[E] {
	n := &node[E]{}
	n.prev = aref.New(n)
	n.next = aref.New(n)
	return n
}

func newNode[E any](prev, next *node[E], v E) *node[E] {
	n := &node[E]{
		prev: aref.New(prev),
		next: aref.New(next),
	}
	n.value.Store(&v)
	return n
}

func (n *node[E]) getValue() E { return *n.value.Load() }

// setValue installs v and returns the value it replaced.
func (n *node[E]) setValue(v E) E {
	old := n.value.Swap(&v)
	return *old
}

// nth walks index+1 hops forward from n, stopping early (and returning
// n itself, the sentinel) if it wraps back around before finishing --
// so nth(size) and beyond all land back on the sentinel, which read
// operations treat as out of range and insertions treat as "append".
func (n *node[E]) nth(index int) *node[E] {
	cur := n
	for i := 0; i <= index; i++ {
		cur = cur.next.Get()
		if cur == n {
			break
		}
	}
	return cur
}

// prepend splices a fresh node holding v immediately before n, as one
// three-cell transaction: bump size, and swing the two links either
// side of the insertion point.
func (n *node[E]) prepend(size *aref.Ref[int], v E) bool {
	prev := n.prev.Get()
	fresh := newNode(prev, n, v)
	s := size.Get()
	cells := mcas.CellForNext(size, s, s+1,
		mcas.CellForNext(prev.next, n, fresh,
			mcas.CellFor(n.prev, prev, fresh)))
	return mcas.Casn(cells)
}

// remove splices n out of the list, as one three-cell transaction:
// decrement size, and reconnect n's neighbors to each other.
func (n *node[E]) remove(size *aref.Ref[int]) bool {
	prev := n.prev.Get()
	next := n.next.Get()
	s := size.Get()
	cells := mcas.CellForNext(size, s, s-1,
		mcas.CellForNext(prev.next, n, next,
			mcas.CellFor(next.prev, n, prev)))
	return mcas.Casn(cells)
}

// List is a lock-free doubly-linked list of values of type E, with a
// sentinel head node standing in for both "one past the end" and "one
// before the start". E must be comparable so Contains/IndexOf/RemoveValue
// can test for equality without reflection.
type List[E comparable] struct {
	head *node[E]
	size *aref.Ref[int]
}

// New returns an empty List.
func New[E comparable]() *List[E] {
	return &List[E]{
		head: newSentinel[E](),
		size: aref.New(0),
	}
}

// Len returns the number of elements currently in the list.
func (l *List[E]) Len() int { return l.size.Get() }

// Get returns the element at index i.
func (l *List[E]) Get(i int) (E, error) {
	if i < 0 {
		var zero E
		return zero, outOfRange(i)
	}
	n := l.head.nth(i)
	if n == l.head {
		var zero E
		return zero, outOfRange(i)
	}
	return n.getValue(), nil
}

// Set replaces the element at index i with v, returning the value it
// replaced.
func (l *List[E]) Set(i int, v E) (E, error) {
	if i < 0 {
		var zero E
		return zero, outOfRange(i)
	}
	n := l.head.nth(i)
	if n == l.head {
		var zero E
		return zero, outOfRange(i)
	}
	return n.setValue(v), nil
}

// Add appends v to the end of the list.
func (l *List[E]) Add(v E) {
	var bo *backoff.Backoff
	for {
		if l.head.prepend(l.size, v) {
			return
		}
		bo = nextBackoff(bo)
	}
}

// AddAt inserts v so that it becomes the element at index i. Indices at
// or beyond the current length are treated as append, matching Get's
// stricter bounds check only being applied to reads; a negative index
// is rejected.
func (l *List[E]) AddAt(i int, v E) error {
	if i < 0 {
		return outOfRange(i)
	}
	var bo *backoff.Backoff
	for {
		n := l.head.nth(i)
		if n.prepend(l.size, v) {
			return nil
		}
		bo = nextBackoff(bo)
	}
}

// Remove deletes and returns the element at index i.
func (l *List[E]) Remove(i int) (E, error) {
	if i < 0 {
		var zero E
		return zero, outOfRange(i)
	}
	for {
		n := 0
		node := l.head.next.Get()
		for {
			if node == l.head {
				var zero E
				return zero, outOfRange(i)
			}
			if n == i {
				if node.remove(l.size) {
					return node.getValue(), nil
				}
				break
			}
			n++
			node = node.next.Get()
		}
	}
}

// RemoveValue deletes the first element equal to v, reporting whether
// one was found.
func (l *List[E]) RemoveValue(v E) bool {
	for {
		node := l.head.next.Get()
		for {
			if node == l.head {
				return false
			}
			if node.getValue() == v {
				if node.remove(l.size) {
					return true
				}
				break
			}
			node = node.next.Get()
		}
	}
}

// Contains reports whether v is present in the list.
func (l *List[E]) Contains(v E) bool { return l.IndexOf(v) != -1 }

// IndexOf returns the index of the first element equal to v, or -1.
func (l *List[E]) IndexOf(v E) int {
	index := 0
	node := l.head.next.Get()
	for node != l.head {
		if node.getValue() == v {
			return index
		}
		index++
		node = node.next.Get()
	}
	return -1
}

// LastIndexOf returns the index of the last element equal to v, or -1.
func (l *List[E]) LastIndexOf(v E) int {
	index := l.size.Get() - 1
	node := l.head.prev.Get()
	for node != l.head {
		if node.getValue() == v {
			return index
		}
		index--
		node = node.prev.Get()
	}
	return -1
}

// Clear removes every element, as a single transaction against size and
// the sentinel's own links.
func (l *List[E]) Clear() {
	var bo *backoff.Backoff
	for {
		prev := l.head.prev.Get()
		next := l.head.next.Get()
		s := l.size.Get()
		cells := mcas.CellForNext(l.size, s, 0,
			mcas.CellForNext(l.head.prev, prev, l.head,
				mcas.CellFor(l.head.next, next, l.head)))
		if mcas.Casn(cells) {
			return
		}
		bo = nextBackoff(bo)
	}
}

func outOfRange(i int) error {
	return fmt.Errorf("dlist: index %d out of range: %w", i, ErrIndexOutOfRange)
}

// nextBackoff lazily constructs a Backoff on first contention and steps
// it on every subsequent retry, mirroring the retry loops' habit of
// starting cheap and only paying for randomized delay once a single CAS
// attempt has already failed.
func nextBackoff(b *backoff.Backoff) *backoff.Backoff {
	if b == nil {
		return backoff.New(1, 32)
	}
	b.Wait()
	return b
}
