package gc

import "math/bits"

// chunkPages is the number of pages described by one level-2 chunk's
// 32-bit allocation bitmap (§4.A "32-bit allocation bitmap per 32-page
// chunk").
const chunkPages = 32

// pageShift is log2(PageSize), used to strip the in-page offset off an
// arbitrary interior pointer before indexing the map.
const pageShift = 13 // 1<<13 == 8192 == PageSize

func init() {
	if 1<<pageShift != PageSize {
		panic("gc: pageShift does not match PageSize")
	}
}

// pageMapChunk is one level-2 entry: the metadata for chunkPages
// consecutive pages plus a bitmap of which of them are allocated, so
// sweep can find-first-set over live pages without touching the holes.
type pageMapChunk struct {
	bitmap uint32                  // bit i set => page i of this chunk is allocated
	pages  [chunkPages]*PageMeta   // nil where bitmap bit is clear
}

// PageMap is the two-level radix map from an address's page number to
// that page's metadata (§4.A). Level 1 is a sparse map keyed by chunk
// index (real Go-runtime radix trees use a flat array sized to the
// virtual address space; a userspace mmap-backed heap never spans
// enough chunks for that to be worthwhile, so level 1 here is a Go map
// over chunk index — still a two-level lookup, just backed by a hash
// table instead of an array at the outer level).
type PageMap struct {
	chunks map[uintptr]*pageMapChunk // chunk index -> chunk
}

// NewPageMap constructs an empty map.
func NewPageMap() *PageMap {
	return &PageMap{chunks: make(map[uintptr]*pageMapChunk)}
}

func splitAddr(addr uintptr) (chunkIdx uintptr, pageInChunk uint) {
	pageIdx := addr >> pageShift
	return pageIdx / chunkPages, uint(pageIdx % chunkPages)
}

// Set installs meta as the owning metadata for the page containing
// addr, marking the chunk's bitmap bit (§4.A "allocator marks the
// bitmap on page acquisition").
func (m *PageMap) Set(addr uintptr, meta *PageMeta) {
	ci, pi := splitAddr(addr)
	c, ok := m.chunks[ci]
	if !ok {
		c = &pageMapChunk{}
		m.chunks[ci] = c
	}
	c.pages[pi] = meta
	c.bitmap |= 1 << pi
}

// Clear removes the page containing addr, clearing its bitmap bit; when
// the chunk becomes entirely empty it is dropped from the outer map
// (§4.A "sweep clears bits when a level subtree contains no allocated
// pages").
func (m *PageMap) Clear(addr uintptr) {
	ci, pi := splitAddr(addr)
	c, ok := m.chunks[ci]
	if !ok {
		return
	}
	c.pages[pi] = nil
	c.bitmap &^= 1 << pi
	if c.bitmap == 0 {
		delete(m.chunks, ci)
	}
}

// Lookup returns the owning page metadata for any interior pointer, or
// nil if the address is not in a page this map knows about.
func (m *PageMap) Lookup(addr uintptr) *PageMeta {
	ci, pi := splitAddr(addr)
	c, ok := m.chunks[ci]
	if !ok {
		return nil
	}
	if c.bitmap&(1<<pi) == 0 {
		return nil
	}
	return c.pages[pi]
}

// FirstAllocated returns the lowest allocated page index within the
// chunk at ci, and whether any page was allocated at all. Sweep uses
// this (via find-first-set) to skip holes cheaply (§4.A).
func (m *PageMap) FirstAllocated(ci uintptr) (pageInChunk uint, ok bool) {
	c, present := m.chunks[ci]
	if !present || c.bitmap == 0 {
		return 0, false
	}
	return uint(bits.TrailingZeros32(c.bitmap)), true
}

// ChunkIndices returns the set of chunk indices that currently have at
// least one allocated page, for sweep to iterate over.
func (m *PageMap) ChunkIndices() []uintptr {
	out := make([]uintptr, 0, len(m.chunks))
	for ci := range m.chunks {
		out = append(out, ci)
	}
	return out
}

// Pages returns every live *PageMeta in the chunk at ci, in page order.
func (m *PageMap) Pages(ci uintptr) []*PageMeta {
	c, ok := m.chunks[ci]
	if !ok {
		return nil
	}
	out := make([]*PageMeta, 0, bits.OnesCount32(c.bitmap))
	bm := c.bitmap
	for bm != 0 {
		i := uint(bits.TrailingZeros32(bm))
		out = append(out, c.pages[i])
		bm &^= 1 << i
	}
	return out
}
