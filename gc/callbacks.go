package gc

import "reflect"

// RootScannerFunc lets an embedder contribute additional roots beyond
// the built-in set (§4.F "Initial roots"); it receives a callback to
// push each extra root cell it finds.
type RootScannerFunc func(push func(Cell))

// TaskScannerFunc lets an embedder contribute task/stack roots; the
// host runtime's task model is out of scope (§1), so this is how it
// plugs in without this package knowing its stack representation.
type TaskScannerFunc func(push func(Cell))

// PreGCFunc runs just before a collection starts (§4.I.4).
type PreGCFunc func(kind CollectKind)

// PostGCFunc runs just after a collection completes, before draining
// to_finalize (§4.I.7).
type PostGCFunc func(kind CollectKind, stats Stats)

// ExternalAllocFunc is notified on every big-object allocation
// (§4.C "notifies the external-alloc callback").
type ExternalAllocFunc func(size uintptr)

// ExternalFreeFunc is notified on every big-object free (§4.G
// "big-object sweep ... external-free callback invoked").
type ExternalFreeFunc func(size uintptr)

// callbackRegistry holds the six chains (§4.J). Each chain is a slice
// standing in for the spec's "linked list of function pointers";
// registration/deregistration identity is by reflect.Value pointer
// since Go func values are not comparable with ==.
type callbackRegistry struct {
	rootScanners   []RootScannerFunc
	taskScanners   []TaskScannerFunc
	preGC          []PreGCFunc
	postGC         []PostGCFunc
	externalAlloc  []ExternalAllocFunc
	externalFree   []ExternalFreeFunc
}

func funcIdentity(f interface{}) uintptr {
	return reflect.ValueOf(f).Pointer()
}

// addCallback appends fn unless a function with the same code pointer
// is already registered (§4.J "idempotent").
func addCallback[F any](chain []F, fn F) []F {
	id := funcIdentity(fn)
	for _, existing := range chain {
		if funcIdentity(any(existing)) == id {
			return chain
		}
	}
	return append(chain, fn)
}

// removeCallback removes the first function in chain whose code
// pointer matches fn (§4.J "deregistration removes the first match").
func removeCallback[F any](chain []F, fn F) []F {
	id := funcIdentity(fn)
	for i, existing := range chain {
		if funcIdentity(any(existing)) == id {
			return append(chain[:i], chain[i+1:]...)
		}
	}
	return chain
}

// SetRootScanner registers or deregisters a root-scanner callback.
func (c *Collector) SetRootScanner(fn RootScannerFunc, enable bool) {
	if enable {
		c.callbacks.rootScanners = addCallback(c.callbacks.rootScanners, fn)
	} else {
		c.callbacks.rootScanners = removeCallback(c.callbacks.rootScanners, fn)
	}
}

// SetTaskScanner registers or deregisters a task-scanner callback.
func (c *Collector) SetTaskScanner(fn TaskScannerFunc, enable bool) {
	if enable {
		c.callbacks.taskScanners = addCallback(c.callbacks.taskScanners, fn)
	} else {
		c.callbacks.taskScanners = removeCallback(c.callbacks.taskScanners, fn)
	}
}

// SetPreGC registers or deregisters a pre-GC callback.
func (c *Collector) SetPreGC(fn PreGCFunc, enable bool) {
	if enable {
		c.callbacks.preGC = addCallback(c.callbacks.preGC, fn)
	} else {
		c.callbacks.preGC = removeCallback(c.callbacks.preGC, fn)
	}
}

// SetPostGC registers or deregisters a post-GC callback.
func (c *Collector) SetPostGC(fn PostGCFunc, enable bool) {
	if enable {
		c.callbacks.postGC = addCallback(c.callbacks.postGC, fn)
	} else {
		c.callbacks.postGC = removeCallback(c.callbacks.postGC, fn)
	}
}

// SetExternalAlloc registers or deregisters an external-allocation
// notification callback.
func (c *Collector) SetExternalAlloc(fn ExternalAllocFunc, enable bool) {
	if enable {
		c.callbacks.externalAlloc = addCallback(c.callbacks.externalAlloc, fn)
	} else {
		c.callbacks.externalAlloc = removeCallback(c.callbacks.externalAlloc, fn)
	}
}

// SetExternalFree registers or deregisters an external-free
// notification callback.
func (c *Collector) SetExternalFree(fn ExternalFreeFunc, enable bool) {
	if enable {
		c.callbacks.externalFree = addCallback(c.callbacks.externalFree, fn)
	} else {
		c.callbacks.externalFree = removeCallback(c.callbacks.externalFree, fn)
	}
}
