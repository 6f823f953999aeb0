package gc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterBufferAppendsToOwnerThread(t *testing.T) {
	c := newTestCollector(t)
	m := c.NewMutator()
	defer m.Close()

	owner, err := m.Alloc(testLeaf{size: 8}.Size(), testLeaf{size: 8})
	require.NoError(t, err)

	r := m.RegisterBuffer(owner, make([]byte, 16))
	require.NotNil(t, r)
	assert.Same(t, r, m.buffers[0])
	assert.False(t, r.freed)
}

func TestSweepBuffersFreesWhenOwnerUnmarked(t *testing.T) {
	c := newTestCollector(t)
	m := c.NewMutator()
	defer m.Close()

	owner, err := m.Alloc(testLeaf{size: 8}.Size(), testLeaf{size: 8})
	require.NoError(t, err)
	r := m.RegisterBuffer(owner, make([]byte, 16))

	// Owner never marked this cycle: sweepBuffers frees it and drops it
	// from the surviving list.
	m.buffers = sweepBuffers(m)
	assert.True(t, r.freed)
	assert.Nil(t, r.Data)
	assert.Len(t, m.buffers, 0)
}

func TestSweepBuffersKeepsMarkedOwner(t *testing.T) {
	c := newTestCollector(t)
	m := c.NewMutator()
	defer m.Close()

	owner, err := m.Alloc(testLeaf{size: 8}.Size(), testLeaf{size: 8})
	require.NoError(t, err)
	r := m.RegisterBuffer(owner, make([]byte, 16))

	HeaderOf(owner).TrySetMarked()

	m.buffers = sweepBuffers(m)
	assert.False(t, r.freed)
	require.Len(t, m.buffers, 1)
	assert.Same(t, r, m.buffers[0])
}

func TestSweepBuffersSkipsAlreadyFreed(t *testing.T) {
	c := newTestCollector(t)
	m := c.NewMutator()
	defer m.Close()

	owner, err := m.Alloc(testLeaf{size: 8}.Size(), testLeaf{size: 8})
	require.NoError(t, err)
	r := m.RegisterBuffer(owner, make([]byte, 16))
	r.freed = true

	survivors := sweepBuffers(m)
	assert.Len(t, survivors, 0, "a record already marked freed is dropped, not re-processed")
}
