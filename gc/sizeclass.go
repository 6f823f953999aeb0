package gc

// Size classes for the pool allocator (§4.B). Grounded in the teacher's
// msize.go: rounding a request above 64 bytes up to its class wastes
// under 20% of the cell, and smaller requests waste at most 15 bytes.
// Each class is allocated and chopped up one page at a time.
//
// This collector uses a short, fixed table rather than computing ~70
// classes at init like the teacher does — sized for typical
// small-object workloads of the embedding language runtime described
// in the spec (cons cells, boxed numbers, short vectors).
var classToSize = [...]uint32{
	0, // class 0 unused: "not small" per msize.go convention
	8, 16, 24, 32, 48, 64, 80, 96, 112, 128,
	160, 192, 224, 256, 320, 384, 448, 512,
	640, 768, 896, 1024, 1280, 1536, 1792, 2048,
}

// NumSizeClasses is the count of usable classes (excluding the unused
// class 0).
const NumSizeClasses = len(classToSize) - 1

// MaxPoolSize is the largest size served by the pool allocator; beyond
// this, allocations go to the big-object allocator (§4.C).
const MaxPoolSize = classToSize[len(classToSize)-1]

// sizeToClass maps a requested size to the smallest size class that
// fits it, linear scan over a table this short is cheaper than the
// teacher's two-array magic-division scheme and just as correct.
func sizeToClass(size uintptr) int {
	for i := 1; i < len(classToSize); i++ {
		if uintptr(classToSize[i]) >= size {
			return i
		}
	}
	return 0 // not small
}
