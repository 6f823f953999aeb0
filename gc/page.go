package gc

import "unsafe"

const freeListEnd = ^uint32(0)

// PageMeta is the per-page bookkeeping the spec's "Pool page" entity
// describes (§3, §4.A): size class, owner, freelist bounds, flags, and
// the per-cell age bitmap used by the promotion and quick-sweep-skip
// heuristics.
type PageMeta struct {
	Base      uintptr // start of the page's cell region
	SizeClass int
	CellSize  uint32 // header + payload, stride between cells
	CellCount uint32
	Owner     *Mutator

	// Freelist, singly linked through the first word of each free
	// cell, i.e. its header word (§4.B invariant; see freeNext).
	FreeBegin uint32 // offset of first free cell, or freeListEnd
	FreeEnd   uint32 // offset of last free cell, or freeListEnd
	NFree     uint32

	HasMarked bool // any cell on this page was reached this cycle
	HasYoung  bool // any cell on this page is young (Clean or Marked)

	// AgeBits holds one bit per cell: set once a cell has survived a
	// sweep (quick or full) without being reclaimed, making it eligible
	// for promotion on the next full sweep it survives (§3, §8 property 3).
	AgeBits []byte

	// PrevNold is the old-object count as of the previous full sweep,
	// used by the quick-sweep page-skip heuristic (§4.G, §9 open
	// question: only updated on full sweeps).
	PrevNold uint32
	nold     uint32 // old-object count accumulated during this sweep

	// bumpCursor is the next unallocated cell index while this page is
	// being served from the "newpages" bump path (§4.B.3).
	bumpCursor uint32

	// next chains pages within one size class's newpages (bump
	// allocation) list, or, once a page has left newpages, within that
	// class's freelist-page chain instead (pool.go installFreelistPage);
	// a page is never on both chains at once.
	next *PageMeta
}

// cellOffset returns the byte offset of cell i within the page.
func (p *PageMeta) cellOffset(i uint32) uint32 { return i * p.CellSize }

// cellAt returns the payload pointer (past the header) for the cell at
// byte offset off within the page.
func (p *PageMeta) cellAt(off uint32) Cell {
	return Cell(unsafe.Pointer(p.Base + uintptr(off) + headerSize))
}

// headerAt returns the header for the cell at byte offset off.
func (p *PageMeta) headerAt(off uint32) *Header {
	return (*Header)(unsafe.Pointer(p.Base + uintptr(off)))
}

// indexOf returns the cell index for a byte offset.
func (p *PageMeta) indexOf(off uint32) uint32 { return off / p.CellSize }

func (p *PageMeta) ageBit(i uint32) bool {
	return p.AgeBits[i/8]&(1<<(i%8)) != 0
}

func (p *PageMeta) setAgeBit(i uint32) {
	p.AgeBits[i/8] |= 1 << (i % 8)
}

func (p *PageMeta) clearAgeBit(i uint32) {
	p.AgeBits[i/8] &^= 1 << (i % 8)
}

// freeNext reads the intrusive next-pointer (an offset) stored in the
// first word of the free cell at off.
func (p *PageMeta) freeNext(off uint32) uint32 {
	return *(*uint32)(unsafe.Pointer(p.Base + uintptr(off)))
}

func (p *PageMeta) setFreeNext(off, next uint32) {
	*(*uint32)(unsafe.Pointer(p.Base + uintptr(off))) = next
}

// pushFree prepends cell offset off to the freelist.
func (p *PageMeta) pushFree(off uint32) {
	p.setFreeNext(off, p.FreeBegin)
	p.FreeBegin = off
	if p.FreeEnd == freeListEnd {
		p.FreeEnd = off
	}
	p.NFree++
}

// appendFree appends cell offset off to the tail of the freelist,
// preserving address order — used while reconstructing the freelist
// during sweep (§4.G "prepend to the reconstructed freelist" sweeps
// high-to-low; callers choose push vs append based on scan direction).
func (p *PageMeta) appendFree(off uint32) {
	p.setFreeNext(off, freeListEnd)
	if p.FreeEnd == freeListEnd {
		p.FreeBegin = off
	} else {
		p.setFreeNext(p.FreeEnd, off)
	}
	p.FreeEnd = off
	p.NFree++
}

// popFree removes and returns the head of the freelist.
func (p *PageMeta) popFree() (off uint32, ok bool) {
	if p.FreeBegin == freeListEnd {
		return 0, false
	}
	off = p.FreeBegin
	p.FreeBegin = p.freeNext(off)
	if p.FreeBegin == freeListEnd {
		p.FreeEnd = freeListEnd
	}
	p.NFree--
	return off, true
}

func newPageMeta(base uintptr, class int, owner *Mutator) *PageMeta {
	cellSize := uint32(headerSize) + classToSize[class]
	count := uint32(PageSize) / cellSize
	p := &PageMeta{
		Base:      base,
		SizeClass: class,
		CellSize:  cellSize,
		CellCount: count,
		Owner:     owner,
		FreeBegin: freeListEnd,
		FreeEnd:   freeListEnd,
		AgeBits:   make([]byte, (count+7)/8),
	}
	return p
}
