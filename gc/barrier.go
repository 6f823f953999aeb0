package gc

// Binding represents a module-binding slot — a reference cell outside
// the regular object graph that the binding barrier targets separately
// from QueueRoot (§4.E "Binding barrier analog for module-binding
// slots").
type Binding struct {
	Header
	Value Cell
}

// QueueRoot is the forward write barrier (§4.E, §6 "queue_root(obj)"):
// called by the mutator whenever an already-OldMarked object obj is
// assigned a (possibly young) child reference.
//
// It marks obj Marked again — which re-queues it for the next mark
// pass that treats last_remset as roots — and appends it to m's
// current remset. No separate remset pointer counter is kept;
// shouldEscalateToFull sizes the intergenerational frontier from the
// remset lengths instead.
func (m *Mutator) QueueRoot(obj Cell) {
	h := m.c.headerOf(obj)
	bits := h.Load()
	if bits != OldMarked {
		// Only OldMarked parents need remembering; a Marked or Clean
		// parent will be traced normally this cycle regardless.
		return
	}
	h.Store(Marked)
	m.remset = append(m.remset, obj)
}

// QueueBinding is the binding-barrier analog of QueueRoot (§4.E,
// §6 "queue_binding(binding)"). Bindings are tagged OldMarked
// immediately rather than re-derived from their previous state, since
// module bindings are always treated as old roots once touched.
func (m *Mutator) QueueBinding(b *Binding) {
	b.Store(OldMarked)
	m.remBindings = append(m.remBindings, b)
}

// swapRemsets starts a new mark cycle for m: the current remset
// becomes last_remset (to be scanned as roots) and a fresh, empty
// remset takes its place for edges created during this cycle
// (§4.E "Each thread owns two remset buffers swapped at the start of
// marking").
func (m *Mutator) swapRemsets() {
	m.lastRemset, m.remset = m.remset, m.lastRemset[:0]
}
