package gc

// Alloc is the pool allocator's public entry point (§4.B, §6 "alloc").
// For sizes above MaxPoolSize it delegates to the big-object allocator
// (§4.C); for overflow-prone size additions it returns
// ErrAllocCounterOverflow before touching the host allocator (§7).
func (m *Mutator) Alloc(size uintptr, typ TypeDescriptor) (Cell, error) {
	m.PollSafepoint()

	if size > uintptr(MaxPoolSize) {
		return m.AllocBig(size, typ)
	}

	class := sizeToClass(size)
	cellSize := int64(uint32(headerSize) + classToSize[class])
	if m.AllocCounter.Load() > (1<<62)-cellSize {
		return nil, ErrAllocCounterOverflow
	}

	// §4.B.1: may trigger a collection if the counter has already
	// crossed zero from a previous allocation.
	if m.AllocCounter.Load() >= 0 {
		m.c.maybeCollect(m)
	}

	cell, err := m.poolAlloc(class)
	if err != nil {
		return nil, err
	}

	m.AllocCounter.Add(cellSize)
	m.c.allocBytes.Add(cellSize)

	h := HeaderOf(cell)
	*h = NewHeader(typ)
	return cell, nil
}

// poolAlloc implements the fast/empty-freelist/fresh-page algorithm of
// §4.B.2-4 for the given size class.
func (m *Mutator) poolAlloc(class int) (Cell, error) {
	for page := m.freePages[class]; page != nil; page = m.freePages[class] {
		if off, ok := page.popFree(); ok {
			// §4.B.2: if the popped cell resides on a different page
			// than the next free cell, the just-emptied page's
			// metadata must be updated. Freelist pages are chained
			// (pool.go installFreelistPage), so "different page"
			// means advancing to the next page in that chain.
			if page.FreeBegin == freeListEnd {
				page.NFree = 0
				page.HasYoung = true
				m.freePages[class] = page.next
				page.next = nil
			}
			return page.cellAt(off), nil
		}
		m.freePages[class] = page.next
		page.next = nil
	}

	return m.bumpAlloc(class)
}

// bumpAlloc services the empty-freelist path: bump-allocate from the
// current newpages head, chaining to the next page, and obtaining a
// fresh page from the page allocator when none remains (§4.B.3).
func (m *Mutator) bumpAlloc(class int) (Cell, error) {
	for {
		page := m.newPages[class]
		if page == nil {
			np, err := m.acquirePage(class)
			if err != nil {
				return nil, err
			}
			m.newPages[class] = np
			page = np
		}

		if page.bumpCursor < page.CellCount {
			off := page.cellOffset(page.bumpCursor)
			page.bumpCursor++
			if page.bumpCursor == page.CellCount {
				m.newPages[class] = page.next
			}
			return page.cellAt(off), nil
		}

		m.newPages[class] = page.next
	}
}

// acquirePage obtains one fresh page from the page allocator, installs
// it in the collector's page map, and returns its metadata
// (§4.B.3 "allocate a fresh page from A and install it").
func (m *Mutator) acquirePage(class int) (*PageMeta, error) {
	base, err := m.c.pageAlloc.Acquire(1)
	if err != nil {
		return nil, ErrOutOfMemory
	}
	meta := newPageMeta(base, class, m)
	m.c.pageMap.Set(base, meta)
	return meta, nil
}

// installFreelistPage adds page to its size class's freelist-page
// chain, used by sweep when it reconstructs a page's freelist in-place
// (sweep.go). Pages are chained through PageMeta.next rather than
// replacing any existing freelist page outright: a page's next field is
// otherwise only used while it is on a class's newpages bump-allocation
// chain, and a page stops being a newpages candidate the moment it is
// fully bump-allocated (pool.go bumpAlloc) or fully swept, so reusing it
// here for the freelist chain never collides with that use. Without
// chaining, installing a second swept page for a class would silently
// drop whatever free cells the previous freelist page still had.
func (m *Mutator) installFreelistPage(page *PageMeta) {
	if page.NFree == 0 {
		return
	}
	page.next = m.freePages[page.SizeClass]
	m.freePages[page.SizeClass] = page
}
