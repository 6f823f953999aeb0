package gc

import "unsafe"

// loadPointerField reads the pointer-sized field at the given byte
// offset from obj's payload start. TypeDescriptor.Fields() offsets are
// defined relative to this same origin (§4.F traversal: "structured
// types use an 8/16/32-bit field-offset table").
func loadPointerField(obj Cell, offset uintptr) Cell {
	return *(*Cell)(unsafe.Pointer(uintptr(obj) + offset))
}

// arrayDataPointer resolves the address of element 0 for a managed
// array, depending on how its storage relates to the object
// (§4.F "how" field / types.go ArrayHow).
//
//   - ArrayInline: elements are stored directly in the cell payload.
//   - ArraySharedBuffer / ArrayMalloced: the cell's first pointer-sized
//     field holds the address of external element storage (a shared
//     buffer, or one tracked by buffer.go).
func arrayDataPointer(obj Cell, how ArrayHow) uintptr {
	if how == ArrayInline {
		return uintptr(obj)
	}
	return uintptr(unsafe.Pointer(loadPointerField(obj, 0)))
}
