package gc

import (
	"github.com/cmichelenstrofer/corevm/internal/atomic"
)

// Bits is the two-bit GC state carried in every managed cell's header
// word, packed alongside the type descriptor pointer in the low bits
// (§3 "Tagged value header").
type Bits uint8

const (
	Clean     Bits = 0b00 // young, unmarked
	Marked    Bits = 0b01 // young, reached this cycle
	Old       Bits = 0b10 // promoted, unmarked this cycle
	OldMarked Bits = 0b11 // promoted and reached
)

// Marked reports whether bit 0 is set — the single "reached this cycle"
// bit shared by Marked and OldMarked.
func (b Bits) Marked() bool { return b&0b01 != 0 }

// IsOld reports whether the object has been promoted past one full
// collection (bit 1 set).
func (b Bits) IsOld() bool { return b&0b10 != 0 }

// Header is the word at the start of every managed cell: a
// type-descriptor reference with two mark bits.
//
// The original packs the descriptor pointer and the two mark bits into
// one machine word (§3). A Go interface value cannot be packed into a
// pointer's low bits without unsafe casts that would make the
// descriptor itself unsafe to dereference, so here the mark bits live
// in their own atomically-accessed byte and the descriptor is a normal
// interface field alongside it; §9's "preserve the packed
// representation" guidance is instead honored where it matters to an
// embedder observing raw bytes — the finalizer list's tag bits
// (finalizer.go), which this port does pack exactly as specified.
type Header struct {
	word atomic.Uint8 // holds Bits
	typ  TypeDescriptor
}

// NewHeader builds a header for a freshly allocated cell. Cells are
// always born Clean (§4.B.4).
func NewHeader(typ TypeDescriptor) Header {
	h := Header{typ: typ}
	h.word.Store(uint8(Clean))
	return h
}

// Type returns the object's type descriptor.
func (h *Header) Type() TypeDescriptor { return h.typ }

// Load reads the current mark bits.
func (h *Header) Load() Bits { return Bits(h.word.Load()) }

// Store unconditionally sets the mark bits, used by sweep to transition
// page cells and big objects between cycles.
func (h *Header) Store(b Bits) { h.word.Store(uint8(b)) }

// TrySetMarked atomically ORs the Marked bit into the header and
// reports whether it was already set (§4.F.1 "try-setmark").
//
// The exchange is relaxed: correctness does not depend on ordering
// between mutators and the collector, only on the stop-the-world fence
// that precedes any call to this during marking (§5 "Memory ordering").
func (h *Header) TrySetMarked() (was Bits, alreadyMarked bool) {
	old := h.word.Or(uint8(Marked))
	return Bits(old), Bits(old).Marked()
}

// Promote clears the mark bit on a surviving cell during a full sweep,
// transitioning Marked or OldMarked to Old (§4.G "promote to OLD (full
// mode only)"; §3 "full sweep clears this to OLD"). It is only ever
// called on cells already known to be marked, but unconditionally lands
// on Old regardless of starting state.
func (h *Header) Promote() {
	for {
		old := h.Load()
		if h.word.CompareAndSwap(uint8(old), uint8(Old)) {
			return
		}
	}
}

// Demote transitions Marked -> Clean for a young survivor (§4.G; sweep
// calls it in both quick and full mode), leaving already-promoted bits
// untouched.
func (h *Header) Demote() {
	for {
		old := h.Load()
		if old != Marked {
			return
		}
		if h.word.CompareAndSwap(uint8(old), uint8(Clean)) {
			return
		}
	}
}

// ResetAge forces a header back to Marked with the Old bit cleared —
// the "mark_reset_age" mode used for objects resurrected by a finalizer
// scan (§4.F, §9 open question on mark_reset_age), ensuring the next
// cycle retraces them instead of treating them as already-promoted.
func (h *Header) ResetAge() { h.word.Store(uint8(Marked)) }
