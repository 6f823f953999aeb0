package gc

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// testLeaf is a TypeDescriptor for an object with no pointer fields.
type testLeaf struct{ size uintptr }

func (t testLeaf) Size() uintptr      { return t.size }
func (t testLeaf) Kind() FieldKind    { return FieldMap8 }
func (t testLeaf) Fields() []uint32   { return nil }
func (t testLeaf) IsArray() bool      { return false }
func (t testLeaf) ArrayLayout() (ArrayHow, uintptr, TypeDescriptor, uintptr) {
	return ArrayInline, 0, nil, 0
}

// testNode is a TypeDescriptor for a struct with one pointer field at
// byte offset 0, enough to build small object graphs for mark tests.
type testNode struct{}

func (testNode) Size() uintptr    { return 8 }
func (testNode) Kind() FieldKind  { return FieldMap32 }
func (testNode) Fields() []uint32 { return []uint32{0} }
func (testNode) IsArray() bool    { return false }
func (testNode) ArrayLayout() (ArrayHow, uintptr, TypeDescriptor, uintptr) {
	return ArrayInline, 0, nil, 0
}

// fakeClock is a manually advanced Clock for deterministic pause-time
// assertions in driver tests.
type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time { return f.t }

func newTestCollector(t *testing.T) *Collector {
	t.Helper()
	c, err := NewCollector(
		WithLogger(zap.NewNop()),
		WithMetricsRegisterer(prometheus.NewRegistry()),
		WithClock(&fakeClock{t: time.Unix(0, 0)}),
		WithDefaultCollectInterval(1<<20),
	)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	return c
}
