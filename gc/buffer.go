package gc

// BufferRecord tracks one externally-malloced array buffer owned by a
// heap object (§4.D): the collector does not allocate the buffer's
// storage but must free it if the owner dies.
type BufferRecord struct {
	Owner Cell
	Data  []byte // the externally-malloced storage, held here so Go's
	               // own allocator (not this collector) keeps it alive
	               // until Free runs; a real embedder would instead
	               // hold a raw pointer obtained from a host malloc.
	freed bool
}

// RegisterBuffer records buf as owned by owner in m's thread-local
// list (§4.D "registered with the owning thread as a small record in
// a thread-local list").
func (m *Mutator) RegisterBuffer(owner Cell, buf []byte) *BufferRecord {
	r := &BufferRecord{Owner: owner, Data: buf}
	m.buffers = append(m.buffers, r)
	return r
}

// sweepBuffers walks m's buffer list, freeing records whose owner is
// unmarked (§4.D "sweep walks the list, freeing records whose owning
// object is unmarked"). It returns the surviving records.
func sweepBuffers(m *Mutator) []*BufferRecord {
	survivors := m.buffers[:0]
	for _, r := range m.buffers {
		if r.freed {
			continue
		}
		if !m.c.headerOf(r.Owner).Load().Marked() {
			r.Data = nil
			r.freed = true
			continue
		}
		survivors = append(survivors, r)
	}
	return survivors
}
