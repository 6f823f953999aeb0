// Package gc implements the core of a generational, stop-the-world,
// non-moving, mark-and-sweep collector: pool and big-object allocation,
// the write-barrier/remembered-set protocol, the mark work stack and
// loop, generational sweep, finalizers, and the collection driver and
// heuristics.
//
// The host runtime's task/thread model, the object-layout subsystem,
// and the page allocator's precise virtual memory strategy are
// external collaborators; this package depends on the first two only
// through the Mutator and TypeDescriptor contracts, and supplies a
// concrete mmap-backed implementation of the third (PageAllocator).
package gc

import (
	"sync"

	"go.uber.org/zap"

	"github.com/cmichelenstrofer/corevm/internal/atomic"
)

// Collector is the single process-wide collector value; every entry
// point in this package takes one (directly or via a *Mutator that
// holds a reference back to it), matching the spec's "Global mutable
// collector state" re-architecture guidance (§9).
type Collector struct {
	cfg Config

	log     *zap.Logger
	metrics *metricsSet
	clock   Clock

	pageAlloc *PageAllocator
	pageMap   *PageMap

	threadsMu sync.Mutex
	threads   []*Mutator

	// running is the "start-GC" safepoint: only one goroutine may hold
	// it at a time (§4.I.2, §8 property 9).
	running    atomic.Bool
	runningMu  sync.Mutex
	runningGen uint64
	waiters    []chan struct{}

	// collectorThread is the Mutator driving the in-progress collection,
	// set for the duration of Collect (driver.go). Sweep uses it to
	// decide which thread receives the merged big-object survivor list
	// (§9 open question; see sweep.go).
	collectorThread *Mutator

	// safepoint is the release-stored "world is stopping" flag
	// mutators acquire-load to decide whether to park (§5).
	safepoint atomic.Bool

	enabled      atomic.Bool
	deferredAlloc atomic.Int64

	conservativeSupport bool

	// Global finalizer bookkeeping (§3 "Global state").
	finalizerLock       sync.Mutex
	toFinalize           []finalizerEntry
	finalizerListMarked  []finalizerEntry

	// Global big-object survivor list, drained from threads' mark
	// caches during the mark phase (§3, §4.F.2).
	markCacheLock    sync.Mutex
	bigObjectsMarked []*BigObject

	heapSnapshotLock sync.Mutex
	permAllocLock    sync.Mutex
	perm             *permArena

	// Counters (§3 "Global state"): allocation and liveness, plus the
	// current-interval knob the heuristics in driver.go tune.
	allocBytes atomic.Int64
	liveBytes  atomic.Int64
	interval   atomic.Int64
	maxTotalMemory atomic.Int64

	lastRSSTrim atomic.Int64 // watermark for the 25%-above-trim heuristic

	// lastCycleWasFull and pendingFullRecollect implement §4.I.6's "if
	// caller requested full and the previous wasn't full, force full
	// and schedule one recollection." Both are touched only from inside
	// Collect, which the running/runningMu pair ensures only one
	// goroutine executes at a time, so no separate lock is needed.
	lastCycleWasFull     bool
	pendingFullRecollect bool

	quickCycles atomic.Uint32
	fullCycles  atomic.Uint32

	callbacks callbackRegistry
}

// NewCollector constructs a Collector with the given options applied
// over DefaultConfig.
func NewCollector(opts ...Option) (*Collector, error) {
	cfg := DefaultConfig()
	for _, o := range opts {
		o(&cfg)
	}

	log := cfg.Logger
	if log == nil {
		var err error
		log, err = zap.NewProduction()
		if err != nil {
			return nil, err
		}
	}

	clock := cfg.Clock
	if clock == nil {
		clock = realClock{}
	}

	c := &Collector{
		cfg:       cfg,
		log:       log,
		clock:     clock,
		pageAlloc: NewPageAllocator(),
		pageMap:   NewPageMap(),
		perm:      newPermArena(),
	}
	c.metrics = newMetricsSet(cfg.MetricsRegisterer)
	c.enabled.Store(true)
	c.interval.Store(cfg.DefaultCollectInterval)
	c.maxTotalMemory.Store(int64(cfg.MaxTotalMemory))
	return c, nil
}

func (c *Collector) registerThread(m *Mutator) {
	c.threadsMu.Lock()
	defer c.threadsMu.Unlock()
	c.threads = append(c.threads, m)
}

func (c *Collector) deregisterThread(m *Mutator) {
	c.threadsMu.Lock()
	defer c.threadsMu.Unlock()
	for i, t := range c.threads {
		if t == m {
			c.threads = append(c.threads[:i], c.threads[i+1:]...)
			break
		}
	}
}

func (c *Collector) snapshotThreads() []*Mutator {
	c.threadsMu.Lock()
	defer c.threadsMu.Unlock()
	out := make([]*Mutator, len(c.threads))
	copy(out, c.threads)
	return out
}

// Enable toggles the global gate (§6 "enable(bool)").
//
// Disabling the collector while finalizers are already inhibited on a
// thread, or re-enabling twice in a row, is not an error per the spec's
// "double-enable of finalizers" kind — that refers to the finalizer
// subsystem's own enable counter (finalizer.go), not this gate.
func (c *Collector) Enable(on bool) {
	c.enabled.Store(on)
}

// IsEnabled reports the global gate's state (§6 "is_enabled()").
func (c *Collector) IsEnabled() bool { return c.enabled.Load() }

// SetMaxMemory suggests the soft cap used to force full sweeps
// (§6 "set_max_memory(bytes)").
func (c *Collector) SetMaxMemory(bytes uint64) {
	c.maxTotalMemory.Store(int64(bytes))
}

// Stats is a point-in-time snapshot of the collector's counters, added
// per SPEC_FULL.md §12 as ambient instrumentation (not a new
// heuristic): a read accessor over the same state driver.go mutates.
type Stats struct {
	AllocBytes   int64
	LiveBytes    int64
	Interval     int64
	QuickCycles  uint32
	FullCycles   uint32
	PagesInUse   int
}

// Stats returns a snapshot of the collector's counters.
func (c *Collector) Stats() Stats {
	return Stats{
		AllocBytes:  c.allocBytes.Load(),
		LiveBytes:   c.liveBytes.Load(),
		Interval:    c.interval.Load(),
		QuickCycles: c.quickCycles.Load(),
		FullCycles:  c.fullCycles.Load(),
		PagesInUse:  c.pageAlloc.InUse(),
	}
}
