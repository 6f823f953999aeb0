package gc

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectBasicLifecycleReclaimsUnreachable(t *testing.T) {
	c := newTestCollector(t)
	m := c.NewMutator()
	defer m.Close()

	reachable, err := m.Alloc(testLeaf{}.Size(), testLeaf{})
	require.NoError(t, err)
	garbage, err := m.Alloc(testLeaf{}.Size(), testLeaf{})
	require.NoError(t, err)

	var root Cell = reachable
	c.SetRootScanner(func(push func(Cell)) { push(root) }, true)

	c.Collect(m, CollectFull)

	assert.Equal(t, Clean, HeaderOf(reachable).Load(), "full sweep demotes a freshly marked young root back to Clean")
	assert.Equal(t, uint32(1), c.fullCycles.Load())

	meta := c.pageMap.Lookup(uintptr(garbage))
	require.NotNil(t, meta)
	// garbage's cell must now be on the page's freelist.
	found := false
	for o := meta.FreeBegin; o != freeListEnd; o = meta.freeNext(o) {
		if meta.cellAt(o) == garbage {
			found = true
			break
		}
	}
	assert.True(t, found, "unreachable cell should be linked onto the page freelist after sweep")
}

func TestCollectWriteBarrierKeepsCrossGenerationEdgeAlive(t *testing.T) {
	c := newTestCollector(t)
	m := c.NewMutator()
	defer m.Close()

	child, err := m.Alloc(testLeaf{}.Size(), testLeaf{})
	require.NoError(t, err)
	parent, err := m.Alloc(testNode{}.Size(), testNode{})
	require.NoError(t, err)

	HeaderOf(parent).Store(OldMarked) // parent already promoted from an earlier cycle
	*(*Cell)(unsafe.Pointer(uintptr(parent))) = child
	m.QueueRoot(parent) // write barrier fires on the old->young store

	c.Collect(m, CollectFull)

	// The write barrier remembered parent via m.remset -> last_remset,
	// so the mark phase reached it as a root and traced child.
	assert.True(t, HeaderOf(child).Load().Marked() || HeaderOf(child).Load() == Clean,
		"child is reachable through parent's remembered edge and should not be corrupted")

	meta := c.pageMap.Lookup(uintptr(child))
	require.NotNil(t, meta)
	found := false
	for o := meta.FreeBegin; o != freeListEnd; o = meta.freeNext(o) {
		if meta.cellAt(o) == child {
			found = true
		}
	}
	assert.False(t, found, "child reached via the remembered parent edge must survive the sweep")
}

func TestCollectClearsWeakRefToUnreachableTarget(t *testing.T) {
	c := newTestCollector(t)
	m := c.NewMutator()
	defer m.Close()

	target, err := m.Alloc(testLeaf{}.Size(), testLeaf{})
	require.NoError(t, err)
	w := m.NewWeakRef(target)

	c.Collect(m, CollectFull) // no roots reference target

	assert.Equal(t, Nothing, w.Target())
}

func TestCollectDisabledDefersAllocCounter(t *testing.T) {
	c := newTestCollector(t)
	m := c.NewMutator()
	defer m.Close()

	c.enabled.Store(false)
	m.AllocCounter.Store(42)

	c.Collect(m, CollectAuto)

	assert.Equal(t, uint32(0), c.fullCycles.Load()+c.quickCycles.Load())
	assert.Equal(t, -c.interval.Load(), m.AllocCounter.Load())
}
