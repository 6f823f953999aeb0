package gc

import (
	"fmt"

	"go.uber.org/zap"
)

// finalizerTag packs the two discriminator bits the spec's finalizer
// list entry carries on its object slot (§3 "Finalizer list entry").
type finalizerTag uint8

const (
	// finalizerManaged means Fn is a FinalizerFunc dispatched through
	// normal Go call semantics (the spec's "managed dispatch").
	finalizerManaged finalizerTag = 0
	// finalizerNativePtr (bit 0) means Fn is a NativeFinalizerFunc, an
	// unboxed native function pointer with no managed dispatch.
	finalizerNativePtr finalizerTag = 0b01
	// finalizerQuiescent (bit 1, always paired with bit 0 per spec)
	// means the entry fires at the next quiescent point regardless of
	// reachability.
	finalizerQuiescent finalizerTag = 0b10
)

// FinalizerFunc is a standard, managed finalizer (§6 "add_finalizer").
type FinalizerFunc func(obj Cell)

// NativeFinalizerFunc is an unboxed native finalizer, tagged with bit 0
// (§6 "add_ptr_finalizer").
type NativeFinalizerFunc func(obj Cell)

type finalizerEntry struct {
	object Cell
	tag    finalizerTag
	fn     FinalizerFunc
	native NativeFinalizerFunc
}

func (e finalizerEntry) call() {
	switch {
	case e.native != nil:
		e.native(e.object)
	case e.fn != nil:
		e.fn(e.object)
	}
}

// AddFinalizer registers a standard finalizer on obj, appended to m's
// list (§4.H "add(object, finalizer)", §6 "add_finalizer").
func (m *Mutator) AddFinalizer(obj Cell, fn FinalizerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finalizers = append(m.finalizers, finalizerEntry{object: obj, tag: finalizerManaged, fn: fn})
}

// AddPtrFinalizer registers a native-pointer finalizer, tag bit 0 set
// (§6 "add_ptr_finalizer").
func (m *Mutator) AddPtrFinalizer(obj Cell, fn NativeFinalizerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finalizers = append(m.finalizers, finalizerEntry{object: obj, tag: finalizerNativePtr, native: fn})
}

// AddQuiescent registers a finalizer with both tag bits set: it fires
// at the next quiescent point regardless of reachability
// (§6 "add_quiescent").
func (m *Mutator) AddQuiescent(obj Cell, fn NativeFinalizerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finalizers = append(m.finalizers, finalizerEntry{
		object: obj,
		tag:    finalizerNativePtr | finalizerQuiescent,
		native: fn,
	})
}

// Finalize scans every thread's finalizer list and the marked list,
// extracts every entry for obj into a copied list, and runs them
// immediately (§4.H "finalize(object)", §6 "finalize(obj)").
func (c *Collector) Finalize(obj Cell) {
	c.finalizerLock.Lock()
	var extracted []finalizerEntry
	for _, m := range c.snapshotThreads() {
		m.mu.Lock()
		kept := m.finalizers[:0]
		for _, e := range m.finalizers {
			if e.object == obj {
				extracted = append(extracted, e)
			} else {
				kept = append(kept, e)
			}
		}
		m.finalizers = kept
		m.mu.Unlock()
	}
	kept := c.finalizerListMarked[:0]
	for _, e := range c.finalizerListMarked {
		if e.object == obj {
			extracted = append(extracted, e)
		} else {
			kept = append(kept, e)
		}
	}
	c.finalizerListMarked = kept
	c.finalizerLock.Unlock()

	runFinalizers(c, extracted)
}

// sweepFinalizerList is the post-mark pass (§4.F "sweep_finalizer_list"):
// unmarked entries move to to_finalize; old-but-unmarked-once entries
// whose object survived move to finalizer_list_marked.
func (c *Collector) sweepFinalizerList(m *Mutator) {
	kept := m.finalizers[:0]
	for _, e := range m.finalizers {
		bits := c.headerOf(e.object).Load()
		switch {
		case !bits.Marked():
			c.toFinalize = append(c.toFinalize, e)
		case bits.IsOld():
			c.finalizerListMarked = append(c.finalizerListMarked, e)
		default:
			kept = append(kept, e)
		}
	}
	m.finalizers = kept
}

// scheduleQuiescent moves every quiescent-tagged entry across all
// threads into to_finalize unconditionally, independent of reachability
// (tag bit 1, finalizerQuiescent; §3 "Finalizer list entry").
func (c *Collector) scheduleQuiescent() {
	for _, m := range c.snapshotThreads() {
		kept := m.finalizers[:0]
		for _, e := range m.finalizers {
			if e.tag&finalizerQuiescent != 0 {
				c.toFinalize = append(c.toFinalize, e)
			} else {
				kept = append(kept, e)
			}
		}
		m.finalizers = kept
	}
}

// RunPendingFinalizers executes every entry currently in to_finalize,
// under the finalizer lock, in reverse order of registration
// (§4.H "run_pending_finalizers", §8 property 6).
//
// It is a no-op on a thread that is inside a finalizer or has
// finalizers inhibited (§8 property 10) — the caller is expected to be
// the thread driving collect(), which checks this before calling.
func (c *Collector) RunPendingFinalizers(m *Mutator) {
	if m.finalizersInhibited > 0 || m.inFinalizer {
		return
	}
	c.finalizerLock.Lock()
	pending := c.toFinalize
	c.toFinalize = nil
	c.finalizerLock.Unlock()

	m.inFinalizer = true
	defer func() { m.inFinalizer = false }()
	runFinalizers(c, pending)
}

// runFinalizers executes entries in reverse registration order so
// lower-level finalizers run last (§8 property 6), catching and
// logging any failure so one finalizer cannot corrupt collector state
// or block the rest (§7 "Finalizer failure").
func runFinalizers(c *Collector, entries []finalizerEntry) {
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.log.Error("finalizer panicked",
						zap.Error(fmt.Errorf("%v", r)))
				}
			}()
			e.call()
		}()
	}
}

// Inhibit increments m's finalizer inhibition count; finalizers do not
// run on m while it is positive (§4.H, §8 property 10). Callers pair
// this with a deferred Uninhibit.
func (m *Mutator) Inhibit() { m.finalizersInhibited++ }

// Uninhibit decrements m's finalizer inhibition count.
func (m *Mutator) Uninhibit() {
	if m.finalizersInhibited > 0 {
		m.finalizersInhibited--
	}
}
