package gc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMutatorAllocFastPath(t *testing.T) {
	c := newTestCollector(t)
	m := c.NewMutator()
	defer m.Close()

	typ := testLeaf{size: 8}
	cell, err := m.Alloc(typ.Size(), typ)
	require.NoError(t, err)
	require.NotNil(t, cell)

	h := HeaderOf(cell)
	assert.Equal(t, Clean, h.Load())
	assert.Equal(t, int64(headerSize)+8, m.AllocCounter.Load()+c.interval.Load())
}

func TestMutatorAllocFillsWholePage(t *testing.T) {
	c := newTestCollector(t)
	m := c.NewMutator()
	defer m.Close()

	typ := testLeaf{size: 8}
	class := sizeToClass(typ.Size())
	cellSize := uint32(headerSize) + classToSize[class]
	perPage := uint32(PageSize) / cellSize

	seen := make(map[uintptr]bool)
	for i := uint32(0); i < perPage+1; i++ {
		cell, err := m.Alloc(typ.Size(), typ)
		require.NoError(t, err)
		addr := uintptr(cell)
		assert.False(t, seen[addr], "cell address reused within one page fill")
		seen[addr] = true
	}
	// The (perPage+1)th allocation must have forced a second page.
	assert.Len(t, seen, int(perPage)+1)
}

func TestMutatorAllocBigDelegation(t *testing.T) {
	c := newTestCollector(t)
	m := c.NewMutator()
	defer m.Close()

	typ := testLeaf{size: uintptr(MaxPoolSize) + 1}
	cell, err := m.Alloc(typ.Size(), typ)
	require.NoError(t, err)
	require.NotNil(t, cell)

	// Delegated allocations register as big objects, not pool pages.
	require.NotNil(t, m.bigHead)
	assert.Equal(t, typ.Size(), m.bigHead.Size)
	assert.Same(t, m, m.bigHead.owner)
}

func TestInstallFreelistPageReuse(t *testing.T) {
	c := newTestCollector(t)
	m := c.NewMutator()
	defer m.Close()

	typ := testLeaf{size: 8}
	class := sizeToClass(typ.Size())

	cell, err := m.Alloc(typ.Size(), typ)
	require.NoError(t, err)

	meta := c.pageMap.Lookup(uintptr(cell))
	require.NotNil(t, meta)

	off := meta.indexOf(uint32(uintptr(cell) - meta.Base - headerSize))
	meta.pushFree(meta.cellOffset(off))

	m.installFreelistPage(meta)
	assert.Same(t, meta, m.freePages[class])

	reused, ok := meta.popFree()
	assert.True(t, ok)
	assert.Equal(t, meta.cellOffset(off), reused)
}
