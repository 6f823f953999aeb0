package gc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetRootScannerRegistersAndDeregisters(t *testing.T) {
	c := newTestCollector(t)

	var calls int
	fn := RootScannerFunc(func(push func(Cell)) { calls++ })

	c.SetRootScanner(fn, true)
	require.Len(t, c.callbacks.rootScanners, 1)

	c.SetRootScanner(fn, false)
	assert.Len(t, c.callbacks.rootScanners, 0)
}

func TestSetRootScannerRegistrationIsIdempotent(t *testing.T) {
	c := newTestCollector(t)

	fn := RootScannerFunc(func(push func(Cell)) {})
	c.SetRootScanner(fn, true)
	c.SetRootScanner(fn, true)
	assert.Len(t, c.callbacks.rootScanners, 1, "registering the same function twice must not duplicate it")
}

func TestSetRootScannerDistinguishesDistinctClosures(t *testing.T) {
	c := newTestCollector(t)

	a := RootScannerFunc(func(push func(Cell)) {})
	b := RootScannerFunc(func(push func(Cell)) {})

	c.SetRootScanner(a, true)
	c.SetRootScanner(b, true)
	assert.Len(t, c.callbacks.rootScanners, 2)

	c.SetRootScanner(a, false)
	require.Len(t, c.callbacks.rootScanners, 1)
}

func TestSetPreGCAndPostGCChains(t *testing.T) {
	c := newTestCollector(t)

	var preCalled, postCalled bool
	pre := PreGCFunc(func(kind CollectKind) { preCalled = true })
	post := PostGCFunc(func(kind CollectKind, stats Stats) { postCalled = true })

	c.SetPreGC(pre, true)
	c.SetPostGC(post, true)
	require.Len(t, c.callbacks.preGC, 1)
	require.Len(t, c.callbacks.postGC, 1)

	m := c.NewMutator()
	defer m.Close()
	c.Collect(m, CollectFull)

	assert.True(t, preCalled)
	assert.True(t, postCalled)
}

func TestSetExternalAllocAndFreeChains(t *testing.T) {
	c := newTestCollector(t)

	var allocSize, freeSize uintptr
	c.SetExternalAlloc(func(size uintptr) { allocSize = size }, true)
	c.SetExternalFree(func(size uintptr) { freeSize = size }, true)

	require.Len(t, c.callbacks.externalAlloc, 1)
	require.Len(t, c.callbacks.externalFree, 1)

	m := c.NewMutator()
	defer m.Close()

	big := testLeaf{size: uintptr(MaxPoolSize) + 1}
	cell, err := m.Alloc(big.Size(), big)
	require.NoError(t, err)
	require.NotNil(t, cell)
	assert.Equal(t, big.Size(), allocSize, "AllocBig must notify the external-alloc chain")

	c.Collect(m, CollectFull)
	assert.Equal(t, big.Size(), freeSize, "sweeping an unmarked big object must notify the external-free chain")
}

func TestRemoveCallbackOnEmptyChainIsNoop(t *testing.T) {
	c := newTestCollector(t)
	fn := TaskScannerFunc(func(push func(Cell)) {})
	c.SetTaskScanner(fn, false)
	assert.Len(t, c.callbacks.taskScanners, 0)
}
