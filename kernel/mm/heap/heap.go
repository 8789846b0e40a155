// Package heap implements the kernel's bump allocator. Memory is carved out
// of 4K and 2M virtual blocks that are obtained from the MMU on demand.
package heap

import (
	"pios/kernel"
	"pios/kernel/kfmt"
	"pios/kernel/mm"
	"pios/kernel/mm/vmm"
	"pios/kernel/sync"
	"sync/atomic"
)

// BackendCapacity is the number of ranges each backend list can hold.
const BackendCapacity = mm.FreeListCapacity

// RefillFn obtains a fresh, mapped and zeroed block of the given size
// (mm.Block4K or mm.Block2M).
type RefillFn func(size mm.Size) (mm.VirtualRange, *kernel.Error)

// Allocator hands out memory by advancing a cursor through its current
// chunk. Exhausted chunks are replaced with blocks popped from the backend
// lists, which are refilled through the RefillFn when empty.
type Allocator struct {
	lock sync.Spinlock

	// chunk is the unused tail of the block currently being carved.
	chunk mm.VirtualRange
	small mm.FreeList[mm.VirtualAddress]
	huge  mm.FreeList[mm.VirtualAddress]

	refill RefillFn

	allocs uint64
	frees  uint64
}

// Init resets the allocator and seeds its backend with seed, which must be
// empty or a single 4K or 2M block.
func (a *Allocator) Init(seed mm.VirtualRange, refill RefillFn) *kernel.Error {
	a.lock.Acquire()
	defer a.lock.Release()

	a.chunk = mm.VirtualRange{}
	a.small = mm.FreeList[mm.VirtualAddress]{}
	a.huge = mm.FreeList[mm.VirtualAddress]{}
	a.refill = refill
	a.allocs, a.frees = 0, 0

	if seed.Empty() {
		return nil
	}

	list, err := a.listFor(seed.Size())
	if err != nil {
		return err
	}
	if mm.AlignDown(seed.Start(), seed.Size()) != seed.Start() {
		return mm.ErrAlign
	}
	return list.Push(seed)
}

func (a *Allocator) listFor(size mm.Size) (*mm.FreeList[mm.VirtualAddress], *kernel.Error) {
	switch size {
	case mm.Block4K:
		return &a.small, nil
	case mm.Block2M:
		return &a.huge, nil
	default:
		return nil, mm.ErrUnsupported
	}
}

// Alloc returns size bytes aligned to align, which must be a power of two.
// Requests that cannot fit in a 2M block fail with ErrUnsupported.
func (a *Allocator) Alloc(size, align mm.Size) (mm.VirtualAddress, *kernel.Error) {
	if align == 0 || align&(align-1) != 0 {
		return 0, mm.ErrAlign
	}
	if size == 0 {
		return 0, mm.ErrInvalid
	}
	if size > mm.Block2M || align > mm.Block2M {
		return 0, mm.ErrUnsupported
	}

	unit := mm.Block2M
	if size+align <= mm.Block4K {
		unit = mm.Block4K
	}

	for {
		a.lock.Acquire()
		if addr, ok := a.carve(size, align); ok {
			a.allocs++
			a.lock.Release()
			return addr, nil
		}

		list, _ := a.listFor(unit)
		if block, ok := list.PopFront(unit); ok {
			a.chunk = block
			a.lock.Release()
			continue
		}
		refill := a.refill
		a.lock.Release()

		if refill == nil {
			return 0, mm.ErrNoPage
		}

		// The lock is not held while the MMU maps the new block.
		block, err := refill(unit)
		if err != nil {
			return 0, err
		}
		kfmt.Printf("[heap] refilled %dKb at 0x%x\n", uint64(unit/mm.Kb), uint64(block.Start()))

		a.lock.Acquire()
		err = list.Push(block)
		a.lock.Release()
		if err != nil {
			return 0, err
		}
	}
}

// carve takes an aligned region of size bytes from the front of the current
// chunk.
func (a *Allocator) carve(size, align mm.Size) (mm.VirtualAddress, bool) {
	if a.chunk.Empty() {
		return 0, false
	}

	start := mm.AlignUp(a.chunk.Start(), align)
	if start < a.chunk.Start() || start >= a.chunk.End() || mm.Size(a.chunk.End()-start) < size {
		return 0, false
	}

	a.chunk, _ = mm.NewRange(start+mm.VirtualAddress(size), a.chunk.End())
	return start, true
}

// Free releases memory returned by Alloc. Memory is never reused; the call
// only keeps count.
func (a *Allocator) Free(addr mm.VirtualAddress) *kernel.Error {
	if addr == 0 {
		return mm.ErrInvalid
	}

	a.lock.Acquire()
	a.frees++
	a.lock.Release()
	return nil
}

// Stats returns the number of Alloc and Free calls that succeeded.
func (a *Allocator) Stats() (allocs, frees uint64) {
	a.lock.Acquire()
	defer a.lock.Release()
	return a.allocs, a.frees
}

// Available returns the bytes left in the current chunk and the backend.
func (a *Allocator) Available() mm.Size {
	a.lock.Acquire()
	defer a.lock.Release()
	return a.chunk.Size() + a.small.Available() + a.huge.Available()
}

var (
	// kzallocFn is mocked by tests.
	kzallocFn = vmm.Kzalloc

	kheap    Allocator
	ready    atomic.Bool
	initLock sync.Spinlock
)

// refillFromMMU maps a new zeroed block in the higher half.
func refillFromMMU(size mm.Size) (mm.VirtualRange, *kernel.Error) {
	block, err := kzallocFn(size, vmm.RWNormal, vmm.HigherPage)
	if err != nil {
		return mm.VirtualRange{}, err
	}
	return block.VA, nil
}

// Init sets up the kernel heap on top of seed, normally the bootstrap page
// reserved by vmm.Init. Additional memory is requested from vmm.Kzalloc.
func Init(seed mm.VirtualRange) *kernel.Error {
	initLock.Acquire()
	defer initLock.Release()

	if ready.Load() {
		return mm.ErrAlreadyInitialized
	}
	if err := kheap.Init(seed, refillFromMMU); err != nil {
		return err
	}

	ready.Store(true)
	kfmt.Printf("[heap] seeded with %dKb at 0x%x\n", uint64(seed.Size()/mm.Kb), uint64(seed.Start()))
	return nil
}

// Alloc returns size bytes from the kernel heap aligned to align.
func Alloc(size, align mm.Size) (mm.VirtualAddress, *kernel.Error) {
	if !ready.Load() {
		return 0, mm.ErrNotInitialized
	}
	return kheap.Alloc(size, align)
}

// Free releases memory obtained from Alloc.
func Free(addr mm.VirtualAddress) *kernel.Error {
	if !ready.Load() {
		return mm.ErrNotInitialized
	}
	return kheap.Free(addr)
}
