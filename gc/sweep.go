package gc

import "unsafe"

// ForeignSweepable is an object with a custom sweep hook the embedder
// registers directly rather than through the pool/big-object
// allocators (§4.G sweep order: "foreign-swept objects").
type ForeignSweepable interface {
	// SweepForeign is called once per cycle; it returns false if the
	// object should be dropped from the thread's foreign-swept list.
	SweepForeign(marked bool) (keep bool)
}

// RegisterForeignSweep adds obj to m's foreign-sweep list.
func (m *Mutator) RegisterForeignSweep(obj ForeignSweepable, cell Cell) {
	m.foreignSwept = append(m.foreignSwept, foreignEntry{obj: obj, cell: cell})
}

type foreignEntry struct {
	obj  ForeignSweepable
	cell Cell
}

// sweepForeign walks m's foreign-swept list in place.
func sweepForeign(m *Mutator) {
	kept := m.foreignSwept[:0]
	for _, e := range m.foreignSwept {
		marked := m.c.headerOf(e.cell).Load().Marked()
		if e.obj.SweepForeign(marked) {
			kept = append(kept, e)
		}
	}
	m.foreignSwept = kept
}

// sweepOne performs the per-thread portion of §4.G's sweep order:
// foreign-swept objects, malloc-backed buffers, big objects, then (via
// sweepPoolPages) pool pages. Weak references are swept separately, as
// a global pass across every thread before sweepOne runs for any of
// them (driver.go Collect) — a weak ref is only ever safe to check
// before any thread's pool/big sweep has had a chance to demote or
// free its target. Task shadow-stack pools are the host runtime's
// concern (§1, out of scope) and are skipped. It returns bytes
// reclaimed and bytes still live, which driver.go folds into the
// next-interval heuristics.
func (c *Collector) sweepOne(m *Mutator, full bool) (freed, live int64) {
	sweepForeign(m)
	m.buffers = sweepBuffers(m)
	bigFreed, bigLive := c.sweepBigObjects(m, full)
	poolFreed, poolLive := c.sweepPoolPages(m, full)
	return bigFreed + poolFreed, bigLive + poolLive
}

// sweepBigObjects is §4.G "Big-object sweep": unlinks and frees
// unmarked objects (invoking the external-free callback), ages and
// promotes/demotes marked ones, and — on a full sweep, for the
// collector thread only — merges the global survivor list back in.
//
// §9 open question: which thread should receive the merged global
// survivors is not obvious from the original; this port merges into
// whichever *Mutator is running the collection (the thread that called
// Collect), documented in DESIGN.md.
func (c *Collector) sweepBigObjects(m *Mutator, full bool) (freed, live int64) {
	obj := m.bigHead
	for obj != nil {
		next := obj.next
		bits := obj.Load()
		if !bits.Marked() {
			m.unlinkBig(obj)
			freed += int64(obj.Size)
			c.freeBig(obj)
		} else {
			if obj.Age < bigObjectPromotionAge {
				obj.Age++
			}
			if full && obj.Age >= bigObjectPromotionAge {
				obj.Store(Old)
			} else if !full {
				obj.Store(Clean)
			}
			live += int64(obj.Size)
		}
		obj = next
	}

	if full && m.isCollectorThread() {
		c.markCacheLock.Lock()
		survivors := c.bigObjectsMarked
		c.bigObjectsMarked = nil
		c.markCacheLock.Unlock()
		for _, obj := range survivors {
			if obj.owner == m {
				continue // already on m's own list
			}
			if obj.owner != nil {
				obj.owner.unlinkBig(obj)
			}
			obj.owner = m
			m.linkBig(obj)
			live += int64(obj.Size)
		}
	}
	return freed, live
}

func (c *Collector) freeBig(obj *BigObject) {
	size := obj.Size
	npages := (int(roundUpCacheLine(uintptr(headerSize)+size)) + PageSize - 1) / PageSize
	base := uintptr(unsafe.Pointer(obj))
	_ = c.pageAlloc.Release(base, npages)
	for _, fn := range c.callbacks.externalFree {
		fn(size)
	}
}

// sweepPoolPages is §4.G "Pool page sweep", applied to every page in
// the page map owned by m, for every size class.
func (c *Collector) sweepPoolPages(m *Mutator, full bool) (freed, live int64) {
	// Every page m owns is swept below and re-installed if it still has
	// free cells, so the freelist-page chains are rebuilt from empty; a
	// page that is recycled or released is then left on no freelist chain.
	for class, p := range m.freePages {
		for p != nil {
			next := p.next
			p.next = nil
			p = next
		}
		m.freePages[class] = nil
	}
	for _, ci := range c.pageMap.ChunkIndices() {
		for _, page := range c.pageMap.Pages(ci) {
			if page.Owner != m {
				continue
			}
			f, l := c.sweepPage(m, page, full)
			freed += f
			live += l
		}
	}
	return freed, live
}

// pageRetentionQuota bounds how many fully-empty pages a size class
// keeps on its newpages list during a quick sweep before pages are
// returned to the OS (§4.G "while under a page-retention quota").
const pageRetentionQuota = 4

func (c *Collector) sweepPage(m *Mutator, page *PageMeta, full bool) (freed, live int64) {
	cellBytes := int64(page.CellSize)

	if !page.HasMarked {
		freed = int64(page.CellCount) * cellBytes
		if !full && m.emptyPagesInClass(page.SizeClass) < pageRetentionQuota {
			c.recyclePage(m, page)
		} else {
			c.releasePage(m, page)
		}
		return freed, 0
	}

	if !full && !page.HasYoung && page.nold == page.PrevNold {
		// §4.G quick-sweep skip heuristic: no young survivors and the
		// old-object count matches the previous full sweep's, so the
		// page's existing freelist boundary is reused as-is instead of
		// walking every cell. Cells already on that freelist before this
		// sweep began stay free — clearing FreeBegin/FreeEnd/NFree here
		// would orphan them until the next full sweep rediscovers them.
		page.HasMarked = false
		live = int64(page.CellCount-page.NFree) * cellBytes
		m.installFreelistPage(page)
		return 0, live
	}

	page.FreeBegin = freeListEnd
	page.FreeEnd = freeListEnd
	page.NFree = 0
	page.nold = 0

	// Cells at or past bumpCursor have not been handed out yet (bump
	// allocation still serves them), so only the cells below it are
	// walked. A page that has left newpages has bumpCursor == CellCount.
	for i := uint32(0); i < page.bumpCursor; i++ {
		off := page.cellOffset(i)
		h := page.headerAt(off)
		bits := h.Load()
		if !bits.Marked() {
			page.appendFree(off)
			page.clearAgeBit(i)
			freed += cellBytes
			continue
		}

		aged := page.ageBit(i) || bits == OldMarked
		if aged {
			// §4.G: promotion only happens on a full sweep, and clears
			// the mark bit (OldMarked/Marked -> Old); quick mode leaves
			// whatever bits the cell already carries untouched (in
			// particular OLD_MARKED stays OLD_MARKED).
			if full {
				h.Promote()
			}
			page.nold++
		} else {
			h.Demote()
			page.HasYoung = true
		}
		page.setAgeBit(i)
		live += cellBytes
	}

	page.HasMarked = false
	if full {
		page.PrevNold = page.nold
	}
	m.installFreelistPage(page)
	return freed, live
}

func (m *Mutator) emptyPagesInClass(class int) int {
	n := 0
	for p := m.newPages[class]; p != nil; p = p.next {
		n++
	}
	return n
}

// recyclePage returns an emptied page to its size class's newpages
// list instead of releasing it to the OS (§4.G "return the page to the
// size class's newpages").
func (c *Collector) recyclePage(m *Mutator, page *PageMeta) {
	page.HasMarked = false
	page.HasYoung = false
	page.FreeBegin = freeListEnd
	page.FreeEnd = freeListEnd
	page.NFree = 0
	page.bumpCursor = 0
	for i := range page.AgeBits {
		page.AgeBits[i] = 0
	}
	page.next = m.newPages[page.SizeClass]
	m.newPages[page.SizeClass] = page
}

// releasePage returns the page's backing memory to the OS.
func (c *Collector) releasePage(m *Mutator, page *PageMeta) {
	c.pageMap.Clear(page.Base)
	_ = c.pageAlloc.Release(page.Base, 1)
}
