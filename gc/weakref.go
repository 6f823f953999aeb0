package gc

// WeakRef is a weak reference to a managed cell (§3 "Weak refs"). Its
// Target is cleared to the nothing sentinel by sweep when the target
// is found unmarked after mark (§4.G sweep order: "weak references"
// first; §8 property 8).
type WeakRef struct {
	target Cell
	owner  *Mutator
}

// Nothing is the host runtime's "nothing" sentinel weak references are
// cleared to (§3 "Weak refs"). nil serves that role here; an embedder
// with a distinguished "nothing" object would substitute it via a
// build-time constant instead.
var Nothing Cell = nil

// NewWeakRef returns a weak reference to value, auto-registered in m's
// weak-ref list (§6 "new_weakref(thread, value)").
func (m *Mutator) NewWeakRef(value Cell) *WeakRef {
	w := &WeakRef{target: value, owner: m}
	m.weakRefs = append(m.weakRefs, w)
	return w
}

// Target returns the current target, or Nothing if it was cleared.
func (w *WeakRef) Target() Cell { return w.target }

// sweepWeakRefs clears every weak ref in m's list whose target is
// unmarked, and leaves the list itself unchanged (weak refs themselves
// are never freed by this pass; only their target pointer is cleared).
func sweepWeakRefs(m *Mutator) {
	for _, w := range m.weakRefs {
		if w.target == nil {
			continue
		}
		if !m.c.headerOf(w.target).Load().Marked() {
			w.target = Nothing
		}
	}
}
