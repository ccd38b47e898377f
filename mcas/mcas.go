// Package mcas implements multi-word compare-and-swap (also called CASN)
// over aref.Ref values: a single call to Casn either transitions every
// ref in an ordered list from its paired old value to its paired new
// value, or changes none of them, with no observer ever seeing a
// partial update. It is built from a restricted double-compare
// single-swap (RDCSS) sub-protocol that installs the MCAS descriptor
// into each ref one at a time, using a private status ref as the
// tie-breaker between "still trying" and "done".
package mcas

import (
	"github.com/ahrav/go-mcas/aref"
)

type status int32

const (
	undecided status = iota
	succeeded
	failed
)

// Cell is one entry in the ordered list of refs a single Casn call
// updates atomically. Build a chain with CellFor and CellForNext,
// listing refs in whatever fixed order your code always acquires them
// in -- Casn itself does not order or deduplicate cells beyond
// rejecting a ref that appears twice.
type Cell struct {
	ref      *aref.RawRef
	old, new any
	next     *Cell
}

// CellFor builds a single-cell chain: ref must transition from old to
// new for the transaction to succeed.
func CellFor[T any](ref *aref.Ref[T], old, new T) *Cell {
	return &Cell{ref: ref.Raw(), old: old, new: new}
}

// CellForNext prepends a cell onto an existing chain built with CellFor
// or CellForNext, so that
//
//	CellForNext(a, ao, an, CellForNext(b, bo, bn, CellFor(c, co, cn)))
//
// reads, left to right, as "a then b then c".
func CellForNext[T any](ref *aref.Ref[T], old, new T, next *Cell) *Cell {
	return &Cell{ref: ref.Raw(), old: old, new: new, next: next}
}

// Casn atomically transitions every ref in cells from its paired old
// value to its paired new value, or changes none of them, and reports
// which happened. Cells must reference distinct refs -- passing the
// same ref twice panics, since the protocol has no defined outcome for
// overlapping cells within one transaction.
func Casn(cells *Cell) bool {
	checkDistinctRefs(cells)
	return newCasnDescriptor(cells).casnUpdate()
}

func checkDistinctRefs(cells *Cell) {
	seen := make(map[*aref.RawRef]bool)
	for c := cells; c != nil; c = c.next {
		if seen[c.ref] {
			panic("mcas: Casn cells must reference distinct refs")
		}
		seen[c.ref] = true
	}
}

// rdcssDescriptor implements restricted double-compare single-swap:
// swing ref2 from o2 to n2, but only if ref1 still reads o1 at the
// moment the swing is resolved. installed is the exact box this
// descriptor was wrapped in when offered to ref2, kept so Complete can
// swing that specific box away by identity rather than by value.
type rdcssDescriptor struct {
	ref1      *aref.RawRef
	o1        any
	ref2      *aref.RawRef
	o2, n2    any
	installed *aref.Box
}

func newRDCSS(ref1 *aref.RawRef, o1 any, ref2 *aref.RawRef, o2, n2 any) *rdcssDescriptor {
	d := &rdcssDescriptor{ref1: ref1, o1: o1, ref2: ref2, o2: o2, n2: n2}
	d.installed = aref.Wrap(aref.Descriptor(d))
	return d
}

// update offers d for installation at ref2, helping any foreign RDCSS
// descriptor already parked there, and returns whatever value ref2 held
// (or descriptor it wrapped) once the attempt settled.
func (d *rdcssDescriptor) update() any {
	var observed *aref.Box
	for {
		observed = d.ref2.CompareAndSwapValue(d.o2, d.installed)
		foreign, ok := observed.Value().(*rdcssDescriptor)
		if !ok {
			break
		}
		foreign.Complete()
	}
	if observed.Value() == d.o2 {
		d.Complete()
	}
	return observed.Value()
}

// Complete drives d to its terminal effect on ref2. It is idempotent:
// any thread that finds d installed may call it, including d's own
// installer.
func (d *rdcssDescriptor) Complete() {
	v := d.ref1.LoadBox().Value()
	if v == d.o1 {
		d.ref2.CompareAndSwapBox(d.installed, aref.Wrap(d.n2))
	} else {
		d.ref2.CompareAndSwapBox(d.installed, aref.Wrap(d.o2))
	}
}

// casnDescriptor drives one multi-cell transaction to a terminal
// outcome across two phases: phase one installs the descriptor itself
// into every cell's ref (via RDCSS, guarded by status), phase two
// swings each cell to its new value on success or back to its old value
// on failure. Any thread that finds a casnDescriptor installed where it
// expected a value must call casnUpdate to help it along -- this is
// exactly what aref.RawRef.Resolve does when Complete is invoked.
type casnDescriptor struct {
	status *aref.RawRef
	cells  *Cell
}

func newCasnDescriptor(cells *Cell) *casnDescriptor {
	return &casnDescriptor{
		status: aref.NewRawRef(undecided),
		cells:  cells,
	}
}

// Complete implements aref.Descriptor, so a casnDescriptor can be
// helped by any thread that encounters it exactly the way an
// rdcssDescriptor is.
func (d *casnDescriptor) Complete() { d.casnUpdate() }

func (d *casnDescriptor) statusValue() status {
	return d.status.LoadBox().Value().(status)
}

func (d *casnDescriptor) casnUpdate() bool {
	if d.statusValue() == undecided {
		outcome := succeeded
	acquire:
		for cell := d.cells; cell != nil; cell = cell.next {
			rd := newRDCSS(d.status, undecided, cell.ref, cell.old, d)
			for {
				observed := rd.update()
				if foreign, ok := observed.(*casnDescriptor); ok {
					if foreign != d {
						foreign.casnUpdate()
						continue
					}
					// foreign == d: a helper already installed this cell for us.
				} else if observed != cell.old {
					outcome = failed
				}
				break
			}
			if outcome != succeeded {
				break acquire
			}
		}
		d.status.CompareAndSwapValue(undecided, aref.Wrap(outcome))
	}

	if d.statusValue() == succeeded {
		for cell := d.cells; cell != nil; cell = cell.next {
			cell.ref.CompareAndSwapValue(d, aref.Wrap(cell.new))
		}
		return true
	}
	for cell := d.cells; cell != nil; cell = cell.next {
		cell.ref.CompareAndSwapValue(d, aref.Wrap(cell.old))
	}
	return false
}
