package gc

import "unsafe"

// FieldKind selects how Mark interprets a type descriptor's pointer map
// (§4.F traversal dispatch: obj8/16/32, array8/16, objarray).
type FieldKind uint8

const (
	// FieldMap8: every pointer-field offset fits in 8 bits (small structs).
	FieldMap8 FieldKind = iota
	// FieldMap16: every pointer-field offset fits in 16 bits.
	FieldMap16
	// FieldMap32: offsets need up to 32 bits (wide structs).
	FieldMap32
	// FieldArray marks a dense, homogeneous array of pointers.
	FieldArray
)

// ArrayHow selects how an array's backing storage relates to the
// object being traced (§4.F "how" field).
type ArrayHow uint8

const (
	ArrayInline       ArrayHow = iota // elements stored inline in the cell
	ArraySharedBuffer                 // elements stored in a buffer another object also refs
	ArrayMalloced                     // elements stored in a buffer registered via Mutator.RegisterBuffer
	ArrayRefsArray                    // the array is itself a reference to another managed array
)

// TypeDescriptor is the contract the excluded object-layout subsystem
// must satisfy so that Mark can traverse arbitrary managed objects
// without the collector knowing any object's concrete Go type.
//
// This package never implements TypeDescriptor; callers (the embedding
// language runtime) supply concrete descriptors for their object model.
type TypeDescriptor interface {
	// Size is the cell payload size in bytes, excluding the header.
	Size() uintptr

	// Kind selects which of Fields/Array below applies.
	Kind() FieldKind

	// Fields returns byte offsets (from the payload start) of pointer
	// fields, for FieldMap8/16/32 kinds. Offsets fit the declared width.
	Fields() []uint32

	// IsArray reports whether this descriptor also describes a managed
	// array; when true, Mark additionally consults ArrayLayout.
	IsArray() bool

	// ArrayLayout describes how to traverse an array's element storage.
	// Only consulted when IsArray reports true.
	ArrayLayout() (how ArrayHow, elemSize uintptr, elemType TypeDescriptor, length uintptr)
}

// Cell is a pointer to a managed object's payload, immediately preceded
// in memory by its Header. Components that need the header recover it
// with HeaderOf.
type Cell unsafe.Pointer

// HeaderOf recovers the Header immediately preceding a pool cell's
// payload. This relies on the pool allocator placing the Header at a
// fixed negative offset from the returned payload pointer (pool.go,
// page.go's cellAt/headerAt). It must not be used on a big-object
// payload: BigObject carries additional bookkeeping (Size, Age, list
// pointers) between its embedded Header and its payload, so the fixed
// headerSize offset does not land on the Header there. Callers that
// cannot assume a cell is a pool cell use Collector.headerOf instead.
func HeaderOf(c Cell) *Header {
	return (*Header)(unsafe.Pointer(uintptr(c) - headerSize))
}

var headerSize = unsafe.Sizeof(Header{})

// headerOf recovers the Header for any managed cell, whether it is a
// pool cell or a big object's payload (§3 "Tagged value header" applies
// uniformly to both). Pool cells are resolved via the page map and
// HeaderOf's fixed offset; any address the page map does not know about
// is assumed to be a big object and resolved through its own header
// layout instead (§4.C "Big-object record").
func (c *Collector) headerOf(cell Cell) *Header {
	addr := uintptr(unsafe.Pointer(cell))
	if c.pageMap.Lookup(addr) != nil {
		return HeaderOf(cell)
	}
	return &bigObjectOf(cell).Header
}
