package gc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSizeToClass(t *testing.T) {
	cases := []struct {
		size     uintptr
		wantSize uint32
	}{
		{1, 8},
		{8, 8},
		{9, 16},
		{100, 112},
		{2048, 2048},
	}
	for _, c := range cases {
		class := sizeToClass(c.size)
		assert.Equal(t, c.wantSize, classToSize[class], "size %d", c.size)
	}
}

func TestSizeToClassNotSmall(t *testing.T) {
	assert.Equal(t, 0, sizeToClass(MaxPoolSize+1))
}
