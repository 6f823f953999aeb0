package gc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderLifecycle(t *testing.T) {
	h := NewHeader(testLeaf{size: 8})
	require.Equal(t, Clean, h.Load())

	was, already := h.TrySetMarked()
	assert.Equal(t, Clean, was)
	assert.False(t, already)
	assert.Equal(t, Marked, h.Load())

	_, already = h.TrySetMarked()
	assert.True(t, already)
}

func TestHeaderPromoteDemote(t *testing.T) {
	h := NewHeader(testLeaf{})
	h.Store(Marked)
	h.Promote()
	assert.Equal(t, Old, h.Load(), "promoting a Marked survivor clears the mark bit to Old")

	h.Store(OldMarked)
	h.Promote()
	assert.Equal(t, Old, h.Load(), "promoting an OldMarked survivor also clears the mark bit to Old")

	h.Promote() // idempotent once Old
	assert.Equal(t, Old, h.Load())

	h.Store(Marked)
	h.Demote()
	assert.Equal(t, Clean, h.Load())

	h.Store(OldMarked)
	h.Demote() // Demote only touches Marked
	assert.Equal(t, OldMarked, h.Load())
}

func TestHeaderResetAge(t *testing.T) {
	h := NewHeader(testLeaf{})
	h.Store(OldMarked)
	h.ResetAge()
	assert.Equal(t, Marked, h.Load())
	assert.False(t, h.Load().IsOld())
}

func TestBitsHelpers(t *testing.T) {
	assert.False(t, Clean.Marked())
	assert.True(t, Marked.Marked())
	assert.False(t, Old.Marked())
	assert.True(t, OldMarked.Marked())

	assert.False(t, Clean.IsOld())
	assert.False(t, Marked.IsOld())
	assert.True(t, Old.IsOld())
	assert.True(t, OldMarked.IsOld())
}
