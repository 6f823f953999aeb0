package gc

import "errors"

// ErrOutOfMemory is raised (returned) to the mutator that triggered an
// allocation or collection when the host allocator cannot satisfy a
// request (§7 "Out-of-memory").
var ErrOutOfMemory = errors.New("gc: out of memory")

// ErrAllocCounterOverflow is returned before any host allocation call
// when adding a requested size to a thread's allocation counter would
// overflow it (§7 "Allocation-counter overflow").
var ErrAllocCounterOverflow = errors.New("gc: allocation counter overflow")

// CorruptionError is the fatal, non-recoverable error raised when
// marking observes an invariant violation — an invalid type
// descriptor, a cycle in supposedly-acyclic frame state, or similar
// (§7 "Internal corruption detected during marking"). The process is
// expected to log this via Collector's logger at Fatal level and exit;
// it is deliberately not a normal Go error returned up a call chain.
type CorruptionError struct {
	Reason string
}

func (e *CorruptionError) Error() string {
	return "gc: internal corruption detected during marking: " + e.Reason
}
