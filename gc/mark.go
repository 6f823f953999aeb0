package gc

import "unsafe"

// markChild is the iterative DFS's per-edge step (§4.F.1-2
// "try-setmark" / "metadata update"). It is called both for initial
// roots and for every reference discovered while traversing an
// already-pushed frame.
//
// It reports whether the child was young (Clean or Marked) at the
// moment it was reached, which callers fold into the parent frame's
// nptr accumulator for the remset forward-flag (§4.F.4).
func (c *Collector) markChild(ms *markStack, child Cell) (isYoung bool) {
	if child == nil {
		return false
	}
	h := c.headerOf(child)
	before, alreadyMarked := h.TrySetMarked()
	isYoung = before == Clean || before == Marked
	if alreadyMarked {
		return isYoung
	}

	c.updateMarkMetadata(child, isYoung)
	ms.push(markFrame{kind: frameMarkedObj, obj: child, bits: before})
	return isYoung
}

// markRemsetRoot traces a remembered-set entry's current children
// unconditionally, bypassing markChild's already-marked short circuit.
// The write barrier (barrier.go QueueRoot/QueueBinding) sets an
// object's Marked bit at the moment it is queued, not at mark time, so
// by the time this cycle's mark phase scans last_remset every entry
// already carries that bit. Treating it as "already marked, nothing to
// do" would defeat the remembered set entirely: the whole reason it is
// a root this cycle is that its old generation's own liveness is
// assumed rather than re-verified, so its current children must still
// be pushed and traced (§4.E, §4.F "Initial roots" / last_remset).
func (c *Collector) markRemsetRoot(ms *markStack, obj Cell) {
	if obj == nil {
		return
	}
	h := c.headerOf(obj)
	bits := h.Load()
	isYoung := bits == Clean || bits == Marked
	c.updateMarkMetadata(obj, isYoung)
	ms.push(markFrame{kind: frameMarkedObj, obj: obj, bits: bits})
}

// updateMarkMetadata is §4.F.2: pool cells get their page's has_marked
// (and has_young) flags set; big objects are recorded in the global
// survivor list.
func (c *Collector) updateMarkMetadata(child Cell, isYoung bool) {
	addr := uintptr(unsafe.Pointer(child))
	if meta := c.pageMap.Lookup(addr); meta != nil {
		meta.HasMarked = true
		if isYoung {
			meta.HasYoung = true
		}
		return
	}

	big := bigObjectOf(child)
	c.pushNewlyMarkedBig(big)
}

// pushNewlyMarkedBig appends big to the marking thread's small
// fixed-capacity buffer (§3 "GC mark cache"), draining it into the
// collector's global survivor list once it fills. Marking is
// single-threaded in this specification (§5 "Scheduling"), so the
// marking thread is always c.collectorThread.
func (c *Collector) pushNewlyMarkedBig(big *BigObject) {
	t := c.collectorThread
	t.newlyMarkedBig[t.newlyMarkedN] = big
	t.newlyMarkedN++
	if t.newlyMarkedN == markCacheCap {
		c.drainNewlyMarkedBig(t)
	}
}

// drainNewlyMarkedBig flushes m's mark-cache buffer into the
// collector's global survivor list under markCacheLock (§3, §4.F.2).
// It is called both when the per-thread buffer fills and once more at
// the end of the mark phase to flush any remainder before sweep reads
// c.bigObjectsMarked.
func (c *Collector) drainNewlyMarkedBig(m *Mutator) {
	if m.newlyMarkedN == 0 {
		return
	}
	c.markCacheLock.Lock()
	c.bigObjectsMarked = append(c.bigObjectsMarked, m.newlyMarkedBig[:m.newlyMarkedN]...)
	c.markCacheLock.Unlock()
	m.newlyMarkedN = 0
}

// drainMarkStack runs the DFS loop to completion over ms, dispatching
// each popped frame by its type descriptor's field-map kind
// (§4.F.3 "Traversal").
func (c *Collector) drainMarkStack(ms *markStack) {
	for {
		f, ok := ms.pop()
		if !ok {
			return
		}
		c.traverseFrame(ms, f)
	}
}

// traverseFrame pushes/marks every child reference reachable from f,
// then — for an object frame whose owner is old and which referenced
// at least one young child — pushes the parent back onto its owning
// thread's remset (§4.F.4).
func (c *Collector) traverseFrame(ms *markStack, f markFrame) {
	switch f.kind {
	case frameMarkedObj, frameScanOnly:
		c.traverseObject(ms, f)
	case frameStack, frameExcStack:
		// Task/exception shadow stacks are supplied by the host
		// runtime's task model (out of scope, §1) through
		// TaskScannerFunc; this frame kind exists so a future
		// parallel marker (§5) has somewhere to push stack-walk
		// continuations, but this single-threaded implementation
		// expects TaskScannerFunc to have already pushed every task
		// root directly via markChild, so there is nothing further to
		// traverse here.
	}
}

func (c *Collector) traverseObject(ms *markStack, f markFrame) {
	h := c.headerOf(f.obj)
	typ := h.Type()
	if typ == nil {
		c.fatalCorruption("object with nil type descriptor reached during mark")
		return
	}

	oldParent := f.bits.IsOld()
	anyYoungChild := false

	if typ.IsArray() {
		how, elemSize, elemType, length := typ.ArrayLayout()
		anyYoungChild = c.traverseArray(ms, f.obj, how, elemSize, elemType, length) || anyYoungChild
	}

	switch typ.Kind() {
	case FieldArray:
		// Pure array types have no additional struct fields.
	default:
		for _, off := range typ.Fields() {
			child := loadPointerField(f.obj, uintptr(off))
			if c.markChild(ms, child) {
				anyYoungChild = true
			}
		}
	}

	if oldParent && anyYoungChild {
		c.rememberOldParent(f.obj)
	}
}

// traverseArray walks a managed array's element storage according to
// its "how" field (§4.F.3 "arrays dispatch on a small 'how' field").
func (c *Collector) traverseArray(ms *markStack, obj Cell, how ArrayHow, elemSize uintptr, elemType TypeDescriptor, length uintptr) bool {
	anyYoung := false
	switch how {
	case ArrayInline, ArraySharedBuffer, ArrayMalloced:
		if elemType == nil {
			return false
		}
		base := arrayDataPointer(obj, how)
		if elemType.Kind() == FieldArray {
			break
		}
		for i := uintptr(0); i < length; i++ {
			elem := Cell(unsafe.Pointer(base + i*elemSize))
			for _, off := range elemType.Fields() {
				child := loadPointerField(elem, uintptr(off))
				if c.markChild(ms, child) {
					anyYoung = true
				}
			}
		}
	case ArrayRefsArray:
		referenced := loadPointerField(obj, 0)
		if c.markChild(ms, referenced) {
			anyYoung = true
		}
	}
	return anyYoung
}

// scanBindings marks every binding's current value, used both for a
// thread's remembered bindings and for module-tree roots
// (§4.F "module_binding" root source, §4.E "Binding barrier").
func (c *Collector) scanBindings(ms *markStack, bindings []*Binding) {
	for _, b := range bindings {
		if c.markChild(ms, b.Value) {
			// Module bindings are always OldMarked (§4.E), so any
			// young value they reference must be remembered.
			b.Store(OldMarked)
		}
	}
}

// rememberOldParent finds parent's owning thread (via its page or big
// object record) and appends it to that thread's remset, re-queuing it
// as a root for the next cycle (§4.F.4).
func (c *Collector) rememberOldParent(parent Cell) {
	addr := uintptr(unsafe.Pointer(parent))
	if meta := c.pageMap.Lookup(addr); meta != nil && meta.Owner != nil {
		meta.Owner.remset = append(meta.Owner.remset, parent)
		return
	}
	big := bigObjectOf(parent)
	if big.owner != nil {
		big.owner.remset = append(big.owner.remset, parent)
	}
}

func (c *Collector) fatalCorruption(reason string) {
	err := &CorruptionError{Reason: reason}
	c.log.Fatal(err.Error())
}
