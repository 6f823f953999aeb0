package gc

import "unsafe"

// bigObjectPromotionAge is the saturating age threshold at which a big
// object becomes eligible for promotion (§3 "age counter (saturating,
// promotion threshold = 1)").
const bigObjectPromotionAge = 1

// BigObject is the header for an allocation too large for any pool
// size class (§3 "Big-object record"). It is allocated via the page
// allocator rounded up to cache-line-aligned pages, written once, and
// then lives on its owning thread's doubly-linked list until freed.
type BigObject struct {
	Header
	Size uintptr
	Age  uint8

	prev, next *BigObject
	owner      *Mutator
}

// cacheLineSize bounds the rounding big-object sizes receive before
// the host allocation call (§4.C "Rounds the requested size up to
// cache-line alignment").
const cacheLineSize = 64

func roundUpCacheLine(n uintptr) uintptr {
	return (n + cacheLineSize - 1) &^ (cacheLineSize - 1)
}

// AllocBig allocates a big object of the given payload size on behalf
// of m, links it into m's list, and notifies the external-alloc
// callback (§4.C).
func (m *Mutator) AllocBig(size uintptr, typ TypeDescriptor) (Cell, error) {
	m.PollSafepoint()
	c := m.c
	total := roundUpCacheLine(uintptr(headerSize) + size)
	npages := (int(total) + PageSize - 1) / PageSize
	base, err := c.pageAlloc.Acquire(npages)
	if err != nil {
		return nil, ErrOutOfMemory
	}

	obj := (*BigObject)(unsafe.Pointer(base))
	obj.Header = NewHeader(typ)
	obj.Size = size
	obj.Age = 0
	obj.owner = m

	m.linkBig(obj)

	m.AllocCounter.Add(int64(total))
	c.allocBytes.Add(int64(total))

	for _, fn := range c.callbacks.externalAlloc {
		fn(size)
	}

	if m.AllocCounter.Load() >= 0 {
		c.maybeCollect(m)
	}

	return Cell(unsafe.Pointer(base + unsafe.Sizeof(BigObject{}))), nil
}

func (m *Mutator) linkBig(obj *BigObject) {
	obj.prev = m.bigTail
	obj.next = nil
	if m.bigTail != nil {
		m.bigTail.next = obj
	} else {
		m.bigHead = obj
	}
	m.bigTail = obj
}

func (m *Mutator) unlinkBig(obj *BigObject) {
	if obj.prev != nil {
		obj.prev.next = obj.next
	} else {
		m.bigHead = obj.next
	}
	if obj.next != nil {
		obj.next.prev = obj.prev
	} else {
		m.bigTail = obj.prev
	}
	obj.prev, obj.next = nil, nil
}

// bigObjectOf recovers the BigObject header for a payload pointer
// returned by AllocBig.
func bigObjectOf(c Cell) *BigObject {
	return (*BigObject)(unsafe.Pointer(uintptr(unsafe.Pointer(c)) - unsafe.Sizeof(BigObject{})))
}
