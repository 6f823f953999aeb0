package gc

// BufferSentinelType is a reserved TypeDescriptor value an embedder may
// assign to pool cells that back a managed array's external element
// storage rather than an ordinary heap object. The conservative
// resolver excludes cells tagged with it (§6 "cells with a sentinel
// 'buffer' type tag must not be returned"); Mark never traces into
// such a cell directly; it is only ever reached through the array
// object that owns it.
var BufferSentinelType TypeDescriptor

// EnableConservativeGCSupport idempotently turns on conservative
// marking support and forces one full collection so every live cell's
// age bit accurately reflects liveness before InternalObjBasePtr is
// relied upon (§6 "triggers one full collection to realign age bits",
// §9 open question on its interaction with mark_reset_age — this port
// simply runs the forced full collection through the ordinary driver,
// which already resets age via ResetAge for finalizer-resurrected
// objects, so the two heuristics compose without special-casing here).
func (c *Collector) EnableConservativeGCSupport(m *Mutator) {
	if c.conservativeSupport {
		return
	}
	c.conservativeSupport = true
	c.Collect(m, CollectFull)
}

// InternalObjBasePtr is the conservative interior-pointer-to-object
// resolver (§6 "internal_obj_base_ptr(ptr)"). It reports the payload
// base of the live managed cell containing ptr, or 0 if ptr does not
// point inside one (§8 property 7 "resolver soundness").
func (c *Collector) InternalObjBasePtr(ptr uintptr) uintptr {
	meta := c.pageMap.Lookup(ptr)
	if meta == nil {
		return 0
	}

	stride := uintptr(meta.CellSize)
	rel := ptr - meta.Base
	if rel >= uintptr(meta.CellCount)*stride {
		return 0
	}
	idx := uint32(rel / stride)
	off := idx * meta.CellSize

	if !c.cellIsLive(meta, idx, off) {
		return 0
	}

	h := meta.headerAt(off)
	if h.Type() == BufferSentinelType {
		return 0
	}

	return meta.Base + uintptr(off) + headerSize
}

// cellIsLive implements the resolver's three cases (§6):
//  1. Page full (no freelist remaining) ⇒ every cell is live.
//  2. Page currently being bump-allocated from (the unique newpages
//     head for its size class) ⇒ cells at or past the bump cursor are
//     dead.
//  3. Page with a freelist ⇒ cells on the freelist are dead; any other
//     cell is live only if its age bit is set.
func (c *Collector) cellIsLive(meta *PageMeta, idx uint32, off uint32) bool {
	if meta.Owner != nil && meta.Owner.newPages[meta.SizeClass] == meta {
		return idx < meta.bumpCursor
	}

	if meta.FreeBegin == freeListEnd && meta.NFree == 0 {
		return true
	}

	for o := meta.FreeBegin; o != freeListEnd; o = meta.freeNext(o) {
		if o == off {
			return false
		}
	}

	return meta.ageBit(idx)
}
