// Package atomic provides the small set of atomic primitives the
// collector needs: header-word exchange, relaxed bit sets, and
// acquire/release flags for safepoint signaling.
//
// The teacher's runtime/internal/atomic is linked to compiler intrinsics
// and hand-written assembly; a userspace collector has no such hook, so
// this is a thin, portable wrapper over sync/atomic instead.
package atomic

import "sync/atomic"

// Uint8 is a byte mutated with relaxed atomics, used for header tag bits.
type Uint8 struct {
	v uint32
}

func (u *Uint8) Load() uint8 { return uint8(atomic.LoadUint32(&u.v)) }

func (u *Uint8) Store(val uint8) { atomic.StoreUint32(&u.v, uint32(val)) }

// CompareAndSwap reports whether the swap happened.
func (u *Uint8) CompareAndSwap(old, new uint8) bool {
	return atomic.CompareAndSwapUint32(&u.v, uint32(old), uint32(new))
}

// Or ORs val into u and returns the previous value.
func (u *Uint8) Or(val uint8) uint8 {
	for {
		old := atomic.LoadUint32(&u.v)
		if atomic.CompareAndSwapUint32(&u.v, old, old|uint32(val)) {
			return uint8(old)
		}
	}
}

// Uint32 is a relaxed atomic counter, used for allocation/live byte counts.
type Uint32 struct{ v uint32 }

func (u *Uint32) Load() uint32      { return atomic.LoadUint32(&u.v) }
func (u *Uint32) Store(val uint32)  { atomic.StoreUint32(&u.v, val) }
func (u *Uint32) Add(delta int32) uint32 {
	return atomic.AddUint32(&u.v, uint32(delta))
}

// Int64 is a relaxed atomic signed counter, used for per-thread
// allocation counters that are initialized negative (§4.B.1).
type Int64 struct{ v int64 }

func (i *Int64) Load() int64     { return atomic.LoadInt64(&i.v) }
func (i *Int64) Store(val int64) { atomic.StoreInt64(&i.v, val) }
func (i *Int64) Add(delta int64) int64 {
	return atomic.AddInt64(&i.v, delta)
}

// Bool is a flag published with release-store semantics and observed
// with acquire-load semantics — the safepoint "world is stopping" signal.
type Bool struct{ v uint32 }

func (b *Bool) Load() bool { return atomic.LoadUint32(&b.v) != 0 }

func (b *Bool) Store(val bool) {
	var n uint32
	if val {
		n = 1
	}
	atomic.StoreUint32(&b.v, n)
}

// CompareAndSwap reports whether the flag transitioned from old to new.
func (b *Bool) CompareAndSwap(old, new bool) bool {
	var o, n uint32
	if old {
		o = 1
	}
	if new {
		n = 1
	}
	return atomic.CompareAndSwapUint32(&b.v, o, n)
}
