package gc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocBigLinksOntoOwnerList(t *testing.T) {
	c := newTestCollector(t)
	m := c.NewMutator()
	defer m.Close()

	typ := testLeaf{size: uintptr(MaxPoolSize) + 1}
	cell, err := m.AllocBig(typ.Size(), typ)
	require.NoError(t, err)
	require.NotNil(t, cell)

	obj := bigObjectOf(cell)
	assert.Same(t, obj, m.bigHead)
	assert.Same(t, obj, m.bigTail)
	assert.Equal(t, typ.Size(), obj.Size)
	assert.Equal(t, uint8(0), obj.Age)
	assert.Equal(t, Clean, obj.Load())
}

func TestAllocBigAppendsInOrder(t *testing.T) {
	c := newTestCollector(t)
	m := c.NewMutator()
	defer m.Close()

	typ := testLeaf{size: uintptr(MaxPoolSize) + 1}
	first, err := m.AllocBig(typ.Size(), typ)
	require.NoError(t, err)
	second, err := m.AllocBig(typ.Size(), typ)
	require.NoError(t, err)

	a := bigObjectOf(first)
	b := bigObjectOf(second)

	assert.Same(t, a, m.bigHead)
	assert.Same(t, b, m.bigTail)
	assert.Same(t, b, a.next)
	assert.Same(t, a, b.prev)
}

func TestUnlinkBig(t *testing.T) {
	c := newTestCollector(t)
	m := c.NewMutator()
	defer m.Close()

	typ := testLeaf{size: uintptr(MaxPoolSize) + 1}
	first, err := m.AllocBig(typ.Size(), typ)
	require.NoError(t, err)
	second, err := m.AllocBig(typ.Size(), typ)
	require.NoError(t, err)
	third, err := m.AllocBig(typ.Size(), typ)
	require.NoError(t, err)

	b := bigObjectOf(second)
	m.unlinkBig(b)

	a := bigObjectOf(first)
	c2 := bigObjectOf(third)
	assert.Same(t, c2, a.next)
	assert.Same(t, a, c2.prev)
	assert.Same(t, a, m.bigHead)
	assert.Same(t, c2, m.bigTail)
}

func TestRoundUpCacheLine(t *testing.T) {
	assert.Equal(t, uintptr(64), roundUpCacheLine(1))
	assert.Equal(t, uintptr(64), roundUpCacheLine(64))
	assert.Equal(t, uintptr(128), roundUpCacheLine(65))
}
