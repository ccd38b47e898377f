package mcas

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-mcas/aref"
)

func TestCasnThreeCells(t *testing.T) {
	r1 := aref.New("v1")
	r2 := aref.New("v2")
	r3 := aref.New("v3")

	ok := Casn(CellForNext(r1, "v1", "v1'",
		CellForNext(r2, "v2", "v2'",
			CellFor(r3, "v3", "v3'"))))
	require.True(t, ok)
	assert.Equal(t, "v1'", r1.Get())
	assert.Equal(t, "v2'", r2.Get())
	assert.Equal(t, "v3'", r3.Get())

	ok = Casn(CellForNext(r1, "v1", "v1'",
		CellForNext(r2, "v2", "v2'",
			CellFor(r3, "v3", "v3'"))))
	assert.False(t, ok, "old values no longer match, transaction must fail")
	assert.Equal(t, "v1'", r1.Get())
	assert.Equal(t, "v2'", r2.Get())
	assert.Equal(t, "v3'", r3.Get())

	ok = Casn(CellForNext(r1, "v1'", "v1",
		CellForNext(r2, "v2'", "v2",
			CellFor(r3, "v3'", "v3"))))
	require.True(t, ok)
	assert.Equal(t, "v1", r1.Get())
	assert.Equal(t, "v2", r2.Get())
	assert.Equal(t, "v3", r3.Get())

	ok = Casn(CellForNext(r1, "v1", "v1",
		CellForNext(r2, "v2", "v2",
			CellFor(r3, "v3", "v3"))))
	assert.True(t, ok, "a no-op transaction (old == new for every cell) must still succeed")
}

func TestCasnFailurePreservesAllCells(t *testing.T) {
	r1 := aref.New(1)
	r2 := aref.New(2)

	ok := Casn(CellForNext(r1, 1, 100,
		CellFor(r2, 99, 200)))
	assert.False(t, ok)
	assert.Equal(t, 1, r1.Get(), "r1 must roll back even though its own old value matched")
	assert.Equal(t, 2, r2.Get())
}

func TestCasnDuplicateRefPanics(t *testing.T) {
	r := aref.New(0)
	assert.Panics(t, func() {
		Casn(CellForNext(r, 0, 1, CellFor(r, 0, 2)))
	})
}

func TestCasnConcurrentAppendUnderContention(t *testing.T) {
	r1 := aref.New("v1")
	r2 := aref.New("v2")
	r3 := aref.New("v3")

	const goroutines = 4
	const iterations = 500

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for n := 0; n < iterations; n++ {
				v1, v2, v3 := r1.Get(), r2.Get(), r3.Get()
				Casn(CellForNext(r1, v1, v1+"*",
					CellForNext(r2, v2, v2+"*",
						CellFor(r3, v3, v3+"*"))))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, len(r1.Get()), len(r2.Get()), "every successful transaction touches both refs together")
	assert.Equal(t, len(r2.Get()), len(r3.Get()))
}

func TestRdcssHelpsForeignDescriptor(t *testing.T) {
	// Regression for the helping path: a transaction blocked behind
	// another transaction's in-flight descriptor must complete once the
	// blocking transaction resolves, rather than observing a stale value.
	a := aref.New(0)
	b := aref.New(0)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		Casn(CellForNext(a, 0, 1, CellFor(b, 0, 1)))
	}()
	go func() {
		defer wg.Done()
		for {
			av, bv := a.Get(), b.Get()
			if Casn(CellForNext(a, av, av+10, CellFor(b, bv, bv+10))) {
				return
			}
		}
	}()
	wg.Wait()

	assert.Equal(t, a.Get(), b.Get(), "a and b are always moved together, so they never diverge")
}
