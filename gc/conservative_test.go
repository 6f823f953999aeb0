package gc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCellIsLiveBumpPendingPage(t *testing.T) {
	c := newTestCollector(t)
	m := c.NewMutator()
	defer m.Close()

	cell, err := m.Alloc(testLeaf{}.Size(), testLeaf{})
	require.NoError(t, err)
	meta := c.pageMap.Lookup(uintptr(cell))
	require.NotNil(t, meta)
	require.Same(t, meta, m.newPages[meta.SizeClass], "freshly allocated page should still be the bump head")

	idx := meta.indexOf(uint32(uintptr(cell) - meta.Base - headerSize))
	assert.True(t, c.cellIsLive(meta, idx, meta.cellOffset(idx)))

	// A cell index at or past the bump cursor has never been allocated.
	assert.False(t, c.cellIsLive(meta, meta.bumpCursor, meta.cellOffset(meta.bumpCursor)))
}

func TestCellIsLiveFullPage(t *testing.T) {
	c := newTestCollector(t)
	m := c.NewMutator()
	defer m.Close()

	cell, err := m.Alloc(testLeaf{}.Size(), testLeaf{})
	require.NoError(t, err)
	meta := c.pageMap.Lookup(uintptr(cell))
	require.NotNil(t, meta)

	// Simulate a page no longer being bump-allocated from and with no
	// freelist remaining: every cell counts as live.
	m.newPages[meta.SizeClass] = nil
	meta.FreeBegin = freeListEnd
	meta.NFree = 0

	idx := meta.indexOf(uint32(uintptr(cell) - meta.Base - headerSize))
	assert.True(t, c.cellIsLive(meta, idx, meta.cellOffset(idx)))
}

func TestCellIsLiveFreelistPage(t *testing.T) {
	c := newTestCollector(t)
	m := c.NewMutator()
	defer m.Close()

	a, err := m.Alloc(testLeaf{}.Size(), testLeaf{})
	require.NoError(t, err)
	b, err := m.Alloc(testLeaf{}.Size(), testLeaf{})
	require.NoError(t, err)
	meta := c.pageMap.Lookup(uintptr(a))
	require.NotNil(t, meta)
	require.Same(t, meta, c.pageMap.Lookup(uintptr(b)))

	m.newPages[meta.SizeClass] = nil // page is no longer being bump-allocated

	bIdx := meta.indexOf(uint32(uintptr(b) - meta.Base - headerSize))
	meta.pushFree(meta.cellOffset(bIdx))

	assert.False(t, c.cellIsLive(meta, bIdx, meta.cellOffset(bIdx)), "freelisted cell is dead")

	aIdx := meta.indexOf(uint32(uintptr(a) - meta.Base - headerSize))
	assert.False(t, c.cellIsLive(meta, aIdx, meta.cellOffset(aIdx)), "unaged cell not on the freelist falls back to its age bit (unset)")

	meta.setAgeBit(aIdx)
	assert.True(t, c.cellIsLive(meta, aIdx, meta.cellOffset(aIdx)), "aged cell not on the freelist is live")
}

func TestInternalObjBasePtrExcludesBufferSentinel(t *testing.T) {
	c := newTestCollector(t)
	m := c.NewMutator()
	defer m.Close()

	cell, err := m.Alloc(testLeaf{}.Size(), testLeaf{})
	require.NoError(t, err)
	meta := c.pageMap.Lookup(uintptr(cell))
	require.NotNil(t, meta)
	m.newPages[meta.SizeClass] = nil
	meta.FreeBegin = freeListEnd
	meta.NFree = 0

	base := c.InternalObjBasePtr(uintptr(cell) + 3) // interior pointer
	assert.Equal(t, uintptr(cell), base)

	*HeaderOf(cell) = NewHeader(BufferSentinelType)
	assert.Equal(t, uintptr(0), c.InternalObjBasePtr(uintptr(cell)+3))
}

func TestInternalObjBasePtrOutsideAnyPage(t *testing.T) {
	c := newTestCollector(t)
	assert.Equal(t, uintptr(0), c.InternalObjBasePtr(0xdeadbeef))
}

func TestEnableConservativeGCSupportIdempotent(t *testing.T) {
	c := newTestCollector(t)
	m := c.NewMutator()
	defer m.Close()

	assert.False(t, c.conservativeSupport)
	c.EnableConservativeGCSupport(m)
	assert.True(t, c.conservativeSupport)
	assert.Equal(t, uint32(1), c.fullCycles.Load())

	c.EnableConservativeGCSupport(m) // second call must not force another cycle
	assert.Equal(t, uint32(1), c.fullCycles.Load())
}
