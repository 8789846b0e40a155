// Package pmm tracks free physical memory.
package pmm

import (
	"pios/kernel"
	"pios/kernel/kfmt"
	"pios/kernel/mm"
	"pios/kernel/sync"
)

// FrameAllocator hands out 4K frames and 2M blocks of physical memory carved
// from the seed range supplied at boot. Each granularity is served from its
// own free list; blocks are never split or coalesced.
type FrameAllocator struct {
	lock sync.Spinlock
	pool mm.RangePool[mm.PhysicalAddress]
}

// Init seeds the allocator. It fails with ErrOverflow if the seed reaches
// beyond the physical address space.
func (alloc *FrameAllocator) Init(seed mm.PhysicalRange) *kernel.Error {
	if uint64(seed.End()) > mm.MaxPhysicalAddress+1 {
		return mm.ErrOverflow
	}

	alloc.lock.Acquire()
	err := alloc.pool.Init(seed, mm.HugePoolPercent, mm.ErrNoFrame)
	alloc.lock.Release()
	if err != nil {
		return err
	}

	alloc.printStats(seed)
	return nil
}

// Allocate reserves a physical block of the requested size (mm.Block4K or
// mm.Block2M). It fails with ErrNotInitialized before Init.
func (alloc *FrameAllocator) Allocate(size mm.Size) (mm.PhysicalRange, *kernel.Error) {
	alloc.lock.Acquire()
	defer alloc.lock.Release()
	return alloc.pool.Allocate(size)
}

// Free returns a block obtained from Allocate.
func (alloc *FrameAllocator) Free(block mm.PhysicalRange) *kernel.Error {
	alloc.lock.Acquire()
	defer alloc.lock.Release()
	return alloc.pool.Free(block)
}

// ReserveFree holds room for block in the free lists so that a following
// CommitFree cannot fail for lack of space.
func (alloc *FrameAllocator) ReserveFree(block mm.PhysicalRange) *kernel.Error {
	alloc.lock.Acquire()
	defer alloc.lock.Release()
	return alloc.pool.ReserveFree(block)
}

// CommitFree returns a block passed to ReserveFree.
func (alloc *FrameAllocator) CommitFree(block mm.PhysicalRange) *kernel.Error {
	alloc.lock.Acquire()
	defer alloc.lock.Release()
	return alloc.pool.CommitFree(block)
}

// CancelFree drops a reservation made by ReserveFree.
func (alloc *FrameAllocator) CancelFree(block mm.PhysicalRange) {
	alloc.lock.Acquire()
	alloc.pool.CancelFree(block)
	alloc.lock.Release()
}

// AllocFrame reserves a single 4K frame.
func (alloc *FrameAllocator) AllocFrame() (mm.Frame, *kernel.Error) {
	block, err := alloc.Allocate(mm.Block4K)
	if err != nil {
		return mm.InvalidFrame, err
	}
	return mm.FrameFromAddress(block.Start()), nil
}

// FreeFrame releases a frame reserved by AllocFrame.
func (alloc *FrameAllocator) FreeFrame(f mm.Frame) *kernel.Error {
	if !f.Valid() {
		return mm.ErrOverflow
	}
	block, err := mm.NewRange(f.Address(), f.Address()+mm.PhysicalAddress(mm.PageSize))
	if err != nil {
		return err
	}
	return alloc.Free(block)
}

// Available returns the free bytes held for the given block size.
func (alloc *FrameAllocator) Available(size mm.Size) mm.Size {
	alloc.lock.Acquire()
	defer alloc.lock.Release()
	return alloc.pool.Available(size)
}

func (alloc *FrameAllocator) printStats(seed mm.PhysicalRange) {
	kfmt.Printf("[pmm] seed range: [0x%10x - 0x%10x]\n", uint64(seed.Start()), uint64(seed.End()))
	kfmt.Printf(
		"[pmm] free memory: %dKb in 2M blocks, %dKb in 4K frames\n",
		uint64(alloc.Available(mm.Block2M)/mm.Kb),
		uint64(alloc.Available(mm.Block4K)/mm.Kb),
	)
}
