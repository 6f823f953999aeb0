package gc

import (
	"sync"

	"github.com/google/uuid"

	"github.com/cmichelenstrofer/corevm/internal/atomic"
)

// Mutator is the thread-local heap state the spec's data model
// describes (§3 "Thread-local heap state"): one per OS thread running
// mutator code against this collector. The host runtime's task/thread
// model (out of scope, §1) is expected to create one Mutator per
// worker thread and thread it through every allocation/barrier call.
type Mutator struct {
	ID uuid.UUID

	c *Collector

	// Pool allocator state (§4.B): one active bump-allocation page and
	// one freelist head per size class.
	newPages  [NumSizeClasses + 1]*PageMeta // bump-allocate-from page, chained via PageMeta.next
	freePages [NumSizeClasses + 1]*PageMeta // page currently being popped from

	// AllocCounter is initialized to -interval and crosses zero to
	// request a collection (§4.B.1). It is thread-local and touched
	// only by its owning thread outside of STW, so a plain atomic is
	// sufficient without further synchronization.
	AllocCounter atomic.Int64

	// Big-object allocator state (§4.C): doubly-linked list owned by
	// this thread.
	bigHead *BigObject
	bigTail *BigObject

	// Malloc-backed buffer tracking (§4.D).
	buffers []*BufferRecord

	// Weak references registered by this thread (§3 "weak ref list").
	weakRefs []*WeakRef

	// Write barrier / remembered set (§4.E): two swappable buffers.
	remset     []Cell
	lastRemset []Cell

	// Module-binding remembered set (§4.E "binding barrier").
	remBindings []*Binding

	// Finalizer list (§4.H): object/finalizer entry pairs.
	finalizers []finalizerEntry

	// Foreign-swept objects with a custom sweep hook (§4.G sweep order).
	foreignSwept []foreignEntry

	// GC mark cache (§3): this thread's mark work stack plus a small
	// fixed buffer of big objects it newly marked this cycle, drained
	// into the collector's global survivor list under markCacheLock.
	// Only the collector thread's buffer is ever populated, since mark
	// and sweep are single-threaded in this specification (§5
	// "Scheduling"); the field still lives per-Mutator because the data
	// model scopes the mark cache to "this thread" rather than to the
	// collector globally.
	markStack      markStack
	newlyMarkedBig [markCacheCap]*BigObject
	newlyMarkedN   int

	// GCState publishes this thread's parked/running status to the
	// collector during a safepoint (§5 "Memory ordering": release
	// store by the collector, acquire load by mutators to confirm
	// parking — here inverted, the mutator release-stores its own
	// parked state and the collector acquire-loads it).
	GCState atomic.Bool

	// finalizersInhibited > 0 blocks finalizers from running on this
	// thread (§4.H, §8 property 10).
	finalizersInhibited int
	inFinalizer          bool

	mu sync.Mutex // guards finalizers slice against cross-thread finalize(obj) scans
}

// markCacheCap bounds the small per-thread buffer of newly-marked big
// objects before it must be drained into the global survivor list
// (§3 "small fixed-capacity buffer").
const markCacheCap = 64

// NewMutator registers a new thread-local heap state with the
// collector and returns it. The host runtime calls this once per
// worker thread it creates.
func (c *Collector) NewMutator() *Mutator {
	m := &Mutator{
		ID: uuid.New(),
		c:  c,
	}
	m.AllocCounter.Store(-c.interval.Load())
	for i := range m.freePages {
		m.freePages[i] = nil
	}
	c.registerThread(m)
	return m
}

// PollSafepoint parks m if another thread has raised the safepoint
// (§5 "Suspension points... on allocation fast paths... and on
// explicit safepoint checks"). It publishes m's parked state via a
// release store and spins until the collector thread clears the
// safepoint, matching the memory-ordering note in §5 (the collector's
// raise is itself a release store mutators observe with an acquire
// load of c.safepoint).
//
// Contract: the allocation fast path (pool.go Alloc, bigobj.go
// AllocBig) calls this automatically, but that alone only stops a
// thread that happens to be allocating. A thread that is live but idle
// with respect to allocation (spinning in a host interpreter loop,
// blocked in a long-running call) must have the host runtime insert
// additional PollSafepoint calls of its own — at loop back-edges and
// function-call prologues, the same points Julia's code generator
// inserts jl_gc_safepoint() calls — or Collect's wait for that thread
// to park (driver.go) can never observe it as parked.
func (m *Mutator) PollSafepoint() {
	if !m.c.safepoint.Load() {
		return
	}
	m.GCState.Store(true)
	for m.c.safepoint.Load() {
	}
	m.GCState.Store(false)
}

// isCollectorThread reports whether m is the thread currently driving a
// collection cycle (set by driver.go's Collect for its duration).
func (m *Mutator) isCollectorThread() bool {
	return m.c.collectorThread == m
}

// Close deregisters the mutator. Any pages, big objects, or buffers it
// still owns stay allocated: sweep only visits registered threads, so
// later collections neither sweep nor reclaim them, and their ownership
// is not migrated to another thread.
func (m *Mutator) Close() {
	m.c.deregisterThread(m)
}
