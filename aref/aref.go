// Package aref implements AREF, the single-cell atomic reference that
// mcas and dlist build their multi-word transactions on top of. A Ref
// holds either a plain user value or a transiently-installed
// Descriptor; any thread that finds a foreign Descriptor where it
// expected a value must drive it to completion (by calling its
// Complete method) before it can make progress of its own.
package aref

import (
	"fmt"
	"sync/atomic"
)

// Descriptor is implemented by transaction objects (mcas's RDCSS and
// MCAS descriptors) that can be temporarily installed in place of a
// Ref's value. Complete must be idempotent: any number of goroutines
// may call it concurrently on the same descriptor.
type Descriptor interface {
	Complete()
}

// Box is the word actually stored in a RawRef's cell: either a plain
// user value or a Descriptor, distinguished by a type assertion rather
// than a separate tag bit. Boxes are compared by pointer identity, so
// two boxes wrapping equal payloads are never themselves equal -- this
// is what lets an installer and a helper agree on whether a particular
// install attempt won, without a separate version counter.
type Box struct {
	v any
}

// Wrap allocates a new Box holding v, ready to install with
// CompareAndSwapBox or CompareAndSwapValue.
func Wrap(v any) *Box { return &Box{v: v} }

// Value returns the payload inside the box.
func (b *Box) Value() any { return b.v }

// RawRef is the type-erased atomic cell beneath Ref[T]. It is exported
// so that mcas.Cell can address refs of unrelated T within a single
// ordered transaction; ordinary callers should use Ref[T] and never see
// a RawRef.
type RawRef struct {
	cell atomic.Pointer[Box]
}

// NewRawRef returns a RawRef initialized to hold v.
func NewRawRef(v any) *RawRef {
	r := &RawRef{}
	r.cell.Store(Wrap(v))
	return r
}

// LoadBox reads the cell's current box without helping any installed
// Descriptor to completion. Only safe when the caller already knows the
// cell can never hold a Descriptor -- mcas uses this to peek at a
// transaction's own status ref.
func (r *RawRef) LoadBox() *Box { return r.cell.Load() }

// Resolve drains any installed Descriptor by helping it to completion,
// returning the Box observed once the cell holds a plain value.
func (r *RawRef) Resolve() *Box {
	for {
		b := r.cell.Load()
		if d, ok := b.v.(Descriptor); ok {
			d.Complete()
			continue
		}
		return b
	}
}

// Get returns the ref's current value, helping any in-flight
// transaction on this ref to completion first.
func (r *RawRef) Get() any { return r.Resolve().v }

// CompareAndSwapBox installs newBox iff the cell currently holds exactly
// expected, by pointer identity. It returns the box observed at the
// point the attempt settled, whether or not it succeeded.
func (r *RawRef) CompareAndSwapBox(expected, newBox *Box) *Box {
	for {
		cur := r.cell.Load()
		if cur != expected {
			return cur
		}
		if r.cell.CompareAndSwap(cur, newBox) {
			return cur
		}
	}
}

// CompareAndSwapValue installs newBox iff the cell's current value is ==
// old, retrying while a concurrent update leaves the value unchanged but
// swaps the box pointer out from under it. It returns the box observed
// when the attempt settled -- if that box wraps a Descriptor, the
// mismatch was a foreign transaction, not a plain value disagreement.
func (r *RawRef) CompareAndSwapValue(old any, newBox *Box) *Box {
	for {
		cur := r.cell.Load()
		if cur.v != old {
			return cur
		}
		if r.cell.CompareAndSwap(cur, newBox) {
			return cur
		}
	}
}

// Set installs v unconditionally, helping any in-flight transaction out
// of the way first.
func (r *RawRef) Set(v any) {
	for {
		old := r.Resolve()
		if r.CompareAndSwapBox(old, Wrap(v)) == old {
			return
		}
	}
}

// CAS is the single-ref compare-and-swap every Ref[T].CAS delegates to.
// It is written directly against the box protocol rather than by
// building a one-cell mcas.Casn transaction, so that aref never needs
// to import mcas; see DESIGN.md for the avoided-cycle note.
func (r *RawRef) CAS(old, new any) bool {
	newBox := Wrap(new)
	for {
		observed := r.CompareAndSwapValue(old, newBox)
		if observed.v == old {
			return true
		}
		if d, ok := observed.v.(Descriptor); ok {
			d.Complete()
			continue
		}
		return false
	}
}

// Ref is a generic AREF[T]: a single-cell atomic holder whose slot is
// either a value of T or a transient Descriptor installed by an
// in-flight transaction. The zero value of T is a legitimate stored
// value, not a sentinel for "empty".
type Ref[T any] struct {
	raw RawRef
}

// New returns a Ref holding v.
func New[T any](v T) *Ref[T] {
	r := &Ref[T]{}
	r.raw.cell.Store(Wrap(v))
	return r
}

// Get returns the ref's current value.
func (r *Ref[T]) Get() T { return r.raw.Get().(T) }

// Set installs v unconditionally.
func (r *Ref[T]) Set(v T) { r.raw.Set(v) }

// CAS installs new iff the ref currently holds old, comparing with ==.
// T must be comparable at the value actually stored, or CAS panics the
// way a bare == comparison on an incomparable type would.
func (r *Ref[T]) CAS(old, new T) bool { return r.raw.CAS(old, new) }

// Raw exposes the type-erased cell beneath this Ref for use by
// transaction protocols (mcas.CellFor) whose cell lists span Refs of
// unrelated T. Not part of the contract for ordinary callers.
func (r *Ref[T]) Raw() *RawRef { return &r.raw }

// String formats the ref's current value for debugging, the same small
// convenience the teacher's own lock types offer (ticket.Lock.isFree,
// mcs.Lock.IsFree) to make a value printable at a glance in a debugger
// or a failing test's output.
func (r *Ref[T]) String() string { return fmt.Sprintf("%v", r.Get()) }
