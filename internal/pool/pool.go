// Package pool provides a fixed-capacity indexed object pool. Allocated
// entries get a stable address for as long as they remain allocated, which
// is what lets a slot's index (or pointer) be handed to the kernel as an
// Iocb completion token and safely resolved back after io_getevents.
package pool

import (
	"fmt"
	"unsafe"
)

type slot[T any] struct {
	allocated bool
	next      int // free-list link when not allocated; meaningless otherwise
	value     T
}

// Pool is a fixed-size slab of T. It never grows or reallocates its backing
// storage, so pointers returned by At remain valid for the Pool's lifetime.
type Pool[T any] struct {
	slots    []slot[T]
	freeHead int // index of the next free slot, or -1 if full
	used     int
}

// New creates a pool with room for exactly capacity entries.
func New[T any](capacity int) *Pool[T] {
	if capacity <= 0 {
		panic("pool: capacity must be positive")
	}

	p := &Pool[T]{
		slots:    make([]slot[T], capacity),
		freeHead: capacity - 1,
	}
	for i := range p.slots {
		p.slots[i].next = i - 1
	}
	return p
}

// Alloc claims a free slot, stores init in it, and returns its index and a
// pointer to the stored value. ok is false if the pool is full, in which
// case nothing is stored and the caller's init is left untouched.
func (p *Pool[T]) Alloc(init T) (idx int, ptr *T, ok bool) {
	if p.freeHead == -1 {
		return 0, nil, false
	}

	idx = p.freeHead
	p.freeHead = p.slots[idx].next
	p.slots[idx].allocated = true
	p.slots[idx].value = init
	p.used++
	return idx, &p.slots[idx].value, true
}

// Free releases the slot at idx, returning its last stored value.
// Panics if idx is out of range or the slot is not currently allocated.
func (p *Pool[T]) Free(idx int) T {
	p.checkIdx(idx)
	if !p.slots[idx].allocated {
		panic(fmt.Sprintf("pool: freeing already-free index %d", idx))
	}

	v := p.slots[idx].value
	var zero T
	p.slots[idx].value = zero
	p.slots[idx].allocated = false
	p.slots[idx].next = p.freeHead
	p.freeHead = idx
	p.used--
	return v
}

// FreeByPointer releases the slot addressed by ptr, which must be a pointer
// previously returned by Alloc or At on this pool and still allocated. This
// mirrors resolving a kernel-returned struct io_event.Obj address back to
// its owning slot without carrying the index around separately.
func (p *Pool[T]) FreeByPointer(ptr *T) T {
	idx := p.indexOfPointer(ptr)
	return p.Free(idx)
}

// At returns a pointer to the value stored at idx. Panics if idx is out of
// range or the slot is not currently allocated.
func (p *Pool[T]) At(idx int) *T {
	p.checkIdx(idx)
	if !p.slots[idx].allocated {
		panic(fmt.Sprintf("pool: access to free index %d", idx))
	}
	return &p.slots[idx].value
}

// Cap returns the total number of slots the pool was created with.
func (p *Pool[T]) Cap() int { return len(p.slots) }

// Used returns the number of currently allocated slots.
func (p *Pool[T]) Used() int { return p.used }

// Avail returns the number of currently free slots.
func (p *Pool[T]) Avail() int { return len(p.slots) - p.used }

func (p *Pool[T]) checkIdx(idx int) {
	if idx < 0 || idx >= len(p.slots) {
		panic(fmt.Sprintf("pool: index %d out of range [0,%d)", idx, len(p.slots)))
	}
}

func (p *Pool[T]) indexOfPointer(ptr *T) int {
	if len(p.slots) == 0 {
		panic("pool: pointer does not belong to this pool")
	}

	base := &p.slots[0].value
	const stride = int(unsafe.Sizeof(slot[T]{}))

	off := int(uintptr(unsafe.Pointer(ptr)) - uintptr(unsafe.Pointer(base)))
	if off < 0 {
		panic("pool: pointer does not belong to this pool")
	}

	idx := off / stride
	if idx >= len(p.slots) {
		panic("pool: pointer does not belong to this pool")
	}
	return idx
}
