package gc

import (
	"go.uber.org/zap"
)

// CollectKind selects whether the caller leaves the quick-vs-full
// choice to the heuristics or forces a full collection (§4.I
// "collect(kind ∈ {auto, full})").
type CollectKind uint8

const (
	// CollectAuto lets the driver's heuristics pick quick or full.
	CollectAuto CollectKind = iota
	// CollectFull forces a full sweep this cycle.
	CollectFull
)

func (k CollectKind) String() string {
	if k == CollectFull {
		return "full"
	}
	return "auto"
}

// freedFractionThreshold is the §4.I.6 "freed < 70% of newly allocated
// bytes" interval-doubling trigger.
const freedFractionThreshold = 0.70

// rssTrimThreshold is the §4.I.6 "RSS is 25% above the last-trim
// watermark" malloc-trim trigger.
const rssTrimThreshold = 1.25

// safepointSpinLimit bounds how many times Collect polls one thread's
// GCState while waiting for it to park (step 3 below).
const safepointSpinLimit = 1 << 30

// Collect is the collection driver's entry point, implementing §4.I's
// seven-step algorithm. m is the mutator thread requesting the
// collection; it becomes the collector thread for the cycle's
// duration.
func (c *Collector) Collect(m *Mutator, kind CollectKind) {
	// Step 1: disabled gate.
	if !c.enabled.Load() {
		c.deferredAlloc.Add(m.AllocCounter.Load())
		m.AllocCounter.Store(-c.interval.Load())
		return
	}

	// Step 2: become the sole collector, or wait for the in-progress
	// cycle and return.
	c.runningMu.Lock()
	if c.running.Load() {
		wait := make(chan struct{})
		c.waiters = append(c.waiters, wait)
		c.runningMu.Unlock()
		<-wait
		return
	}
	c.running.Store(true)
	c.runningGen++
	c.collectorThread = m
	c.runningMu.Unlock()

	defer c.finishCollect()

	wantFull := kind == CollectFull

	// Step 3: snapshot threads, raise the safepoint, spin-wait for
	// every thread to park.
	//
	// This bounds the wait rather than spinning forever: a registered
	// thread only parks in response to a PollSafepoint call, and the
	// allocation fast path only calls it on its own. A thread that is
	// live but not currently allocating (spinning in a host interpreter
	// loop, blocked in a long call) will never park unless the host
	// runtime also calls PollSafepoint at additional program points —
	// see the contract documented on Mutator.PollSafepoint in
	// thread.go. Past safepointSpinLimit iterations this is
	// indistinguishable from that contract being unmet, so it is
	// treated the same as any other impossible runtime state (§7): a
	// fatal, logged abort, matching the teacher's own "all goroutines
	// are asleep" deadlock detection rather than hanging indefinitely.
	threads := c.snapshotThreads()
	c.safepoint.Store(true)
	for _, t := range threads {
		if t == m {
			continue
		}
		spins := 0
		for !t.GCState.Load() {
			spins++
			if spins >= safepointSpinLimit {
				c.log.Fatal("mutator did not reach a safepoint before the spin limit; "+
					"the host runtime must call Mutator.PollSafepoint at more than "+
					"allocation fast paths for every live thread",
					zap.String("mutator", t.ID.String()))
			}
		}
	}

	// Step 4: pre-GC callbacks.
	for _, fn := range c.callbacks.preGC {
		fn(kind)
	}

	start := c.clock.Now()
	liveBefore := c.liveBytes.Load()
	allocBefore := c.allocBytes.Load()

	// Step 5: mark, post-mark finalizer bookkeeping, sweep.
	full := wantFull || c.shouldEscalateToFull() || c.pendingFullRecollect
	c.pendingFullRecollect = false
	if wantFull && !c.lastCycleWasFull {
		full = true
		c.pendingFullRecollect = true
	}
	c.runMarkPhase(threads)
	c.runPostMarkFinalizers(threads)
	c.drainNewlyMarkedBig(c.collectorThread)

	// §4.G sweep order: weak references are cleared for every thread
	// before any thread's pool/big-object sweep runs its demote/promote
	// pass, since a weak ref owned by one thread may target a cell
	// owned by another (§8 property 8 must hold across threads, not
	// just within one).
	for _, t := range threads {
		sweepWeakRefs(t)
	}

	var freedTotal, liveTotal int64
	for _, t := range threads {
		freed, live := c.sweepOne(t, full)
		freedTotal += freed
		liveTotal += live
	}
	c.liveBytes.Store(liveTotal)

	// Step 6: update counters and decide next-cycle parameters.
	allocatedThisCycle := c.allocBytes.Load() - allocBefore
	c.tuneNextCycle(full, freedTotal, allocatedThisCycle, len(threads))
	if full {
		c.fullCycles.Add(1)
		c.maybeTrimRSS(liveBefore, liveTotal)
	} else {
		c.quickCycles.Add(1)
	}
	c.lastCycleWasFull = full

	elapsed := c.clock.Now().Sub(start)
	c.metrics.observeCycle(kind.String(), elapsed.Seconds(), liveTotal, allocatedThisCycle, c.interval.Load())
	c.log.Debug("collection complete",
		zap.String("kind", kind.String()),
		zap.Bool("full", full),
		zap.Int64("freed_bytes", freedTotal),
		zap.Int64("live_bytes", liveTotal),
		zap.Duration("pause", elapsed))

	// Step 7: clear the safepoint, restore mutator state, post-GC
	// callbacks, drain to_finalize.
	for _, t := range threads {
		t.AllocCounter.Store(-c.interval.Load())
		if t != m {
			t.GCState.Store(false)
		}
	}
	c.safepoint.Store(false)

	stats := c.Stats()
	for _, fn := range c.callbacks.postGC {
		fn(kind, stats)
	}

	if !m.inFinalizer {
		c.RunPendingFinalizers(m)
	}
}

// finishCollect releases the sole-collector safepoint and wakes any
// thread that called Collect while one was already running (§4.I.2).
func (c *Collector) finishCollect() {
	c.runningMu.Lock()
	c.running.Store(false)
	c.collectorThread = nil
	waiters := c.waiters
	c.waiters = nil
	c.runningMu.Unlock()
	for _, w := range waiters {
		close(w)
	}
}

// shouldEscalateToFull implements the "intergenerational frontier"
// half of §4.I.6: a large summed remset across threads indicates the
// write barrier is doing enough cross-generation work that a full
// sweep will pay for itself.
func (c *Collector) shouldEscalateToFull() bool {
	if c.liveBytes.Load() > c.maxTotalMemory.Load() {
		return true
	}
	var remTotal int
	for _, t := range c.snapshotThreads() {
		remTotal += len(t.lastRemset) + len(t.remBindings)
	}
	return remTotal > remsetEscalationThreshold
}

// remsetEscalationThreshold is this port's concrete reading of "a large
// remset": the original leaves the exact threshold unspecified (§9 is
// silent on it), so this is picked to be comfortably above what a
// single generational write-barrier storm produces in normal use and
// documented in DESIGN.md rather than derived from the spec.
const remsetEscalationThreshold = 1 << 16

// runMarkPhase drives §4.F's root set and DFS loop to a fixpoint, using
// the collector thread's own mark stack since mark and sweep are
// single-threaded in this specification (§5 "Scheduling").
func (c *Collector) runMarkPhase(threads []*Mutator) {
	ms := &c.collectorThread.markStack

	for _, t := range threads {
		t.swapRemsets()
		for _, root := range t.lastRemset {
			c.markRemsetRoot(ms, root)
		}
		c.scanBindings(ms, t.remBindings)

		for _, fn := range c.callbacks.taskScanners {
			fn(func(root Cell) { c.markChild(ms, root) })
		}
	}

	for _, fn := range c.callbacks.rootScanners {
		fn(func(root Cell) { c.markChild(ms, root) })
	}

	c.drainMarkStack(ms)

	// After root marking, finalizer_list_marked is scanned as roots so
	// a finalizer keeps its object alive during this cycle (§4.F).
	c.finalizerLock.Lock()
	marked := c.finalizerListMarked
	c.finalizerLock.Unlock()
	for _, e := range marked {
		c.markChild(ms, e.object)
	}
	c.drainMarkStack(ms)
}

// runPostMarkFinalizers is §4.F's post-root-marking finalizer
// bookkeeping: schedule ready finalizers, then run a second mark drain
// over anything a finalizer might keep alive, resetting its age so the
// next cycle retraces it ("mark reset age").
func (c *Collector) runPostMarkFinalizers(threads []*Mutator) {
	for _, t := range threads {
		c.sweepFinalizerList(t)
	}
	c.scheduleQuiescent()

	ms := &c.collectorThread.markStack
	c.finalizerLock.Lock()
	pending := c.toFinalize
	c.finalizerLock.Unlock()
	for _, e := range pending {
		h := c.headerOf(e.object)
		// markChild first: once ResetAge has set the mark bit, markChild
		// would see the object as already marked and not trace it.
		c.markChild(ms, e.object)
		h.ResetAge()
	}
	c.drainMarkStack(ms)
}

// tuneNextCycle applies §4.I.6's interval heuristic: it doubles the
// collect interval, capped by maxInterval, when less than
// freedFractionThreshold of this cycle's allocated bytes were freed.
// Escalation to a full sweep is decided by shouldEscalateToFull.
func (c *Collector) tuneNextCycle(full bool, freed, allocated int64, nthreads int) {
	if allocated > 0 && float64(freed) < freedFractionThreshold*float64(allocated) {
		next := c.interval.Load() * 2
		ceiling := maxInterval(c.cfg.MaxCollectInterval, c.maxTotalMemory.Load(), nthreads)
		if next > ceiling {
			next = ceiling
		}
		c.interval.Store(next)
	}
}

// maxInterval is §4.I.6's interval cap: max(max_collect_interval,
// total_mem / threads / 2) on 64-bit.
func maxInterval(configured, totalMem int64, nthreads int) int64 {
	if nthreads < 1 {
		nthreads = 1
	}
	derived := totalMem / int64(nthreads) / 2
	if derived > configured {
		return derived
	}
	return configured
}

// maybeTrimRSS is §4.I.6's "after full sweep, if RSS is 25% above the
// last-trim watermark, invoke the host's malloc-trim (Linux only)".
// This port has no host malloc to trim (pages come directly from
// PageAllocator's mmap, released immediately on sweep), so the
// watermark bookkeeping is kept for parity with the heuristic and to
// give an embedder a hook (via a future RSS-trim callback) without
// fabricating a trim syscall this collector does not need.
func (c *Collector) maybeTrimRSS(liveBefore, liveAfter int64) {
	watermark := c.lastRSSTrim.Load()
	if watermark == 0 || float64(liveAfter) > rssTrimThreshold*float64(watermark) {
		c.lastRSSTrim.Store(liveAfter)
	}
}

// maybeCollect is the safepoint poll on the allocation fast path
// (§4.B.1, §5 "Suspension points"): called once a thread's allocation
// counter has crossed zero.
func (c *Collector) maybeCollect(m *Mutator) {
	c.Collect(m, CollectAuto)
}
