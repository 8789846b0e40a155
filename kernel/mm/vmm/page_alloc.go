package vmm

import (
	"pios/kernel"
	"pios/kernel/mm"
	"pios/kernel/sync"
)

// Region selects the half of the virtual address space an allocation is
// served from.
type Region uint8

// The supported regions.
const (
	// LowerPage allocates from the TTBR0 half.
	LowerPage Region = iota

	// HigherPage allocates from the TTBR1 half.
	HigherPage

	numRegions
)

// String implements fmt.Stringer for Region.
func (r Region) String() string {
	switch r {
	case LowerPage:
		return "lower"
	case HigherPage:
		return "higher"
	default:
		return "unknown"
	}
}

// contains returns true if va belongs to the half selected by r.
func (r Region) contains(va mm.VirtualAddress) bool {
	if r == HigherPage {
		return va >= mm.HigherHalfBase
	}
	return va < mm.LowerHalfEnd
}

// clipSeed checks that seed lies in the half selected by region and trims
// the part overlapping the recursive window.
func clipSeed(region Region, seed mm.VirtualRange) (mm.VirtualRange, *kernel.Error) {
	if seed.Empty() {
		return seed, nil
	}

	limit := LowerReservedStart
	switch region {
	case LowerPage:
		if seed.End() > mm.LowerHalfEnd {
			return seed, mm.ErrOverflow
		}
	case HigherPage:
		if seed.Start() < mm.HigherHalfBase {
			return seed, mm.ErrOverflow
		}
		limit = HigherReservedStart
	default:
		return seed, mm.ErrUnsupported
	}

	start, end := seed.Start(), seed.End()
	if end > limit {
		end = limit
	}
	if start > end {
		start = end
	}
	return mm.NewRange(start, end)
}

// PageAllocator tracks free virtual memory in both halves of the address
// space. Each half has its own 2M and 4K lists.
type PageAllocator struct {
	lock  sync.Spinlock
	pools [numRegions]mm.RangePool[mm.VirtualAddress]
}

// Init seeds the allocator with the free ranges of each half.
func (alloc *PageAllocator) Init(lower, higher mm.VirtualRange) *kernel.Error {
	alloc.lock.Acquire()
	defer alloc.lock.Release()

	for region, seed := range [numRegions]mm.VirtualRange{lower, higher} {
		clipped, err := clipSeed(Region(region), seed)
		if err != nil {
			return err
		}
		if err = alloc.pools[region].Init(clipped, mm.HugePoolPercent, mm.ErrNoPage); err != nil {
			return err
		}
	}
	return nil
}

// Allocate reserves a block of the requested size (mm.Block4K or mm.Block2M)
// in the given region.
func (alloc *PageAllocator) Allocate(region Region, size mm.Size) (mm.VirtualRange, *kernel.Error) {
	if region >= numRegions {
		return mm.VirtualRange{}, mm.ErrUnsupported
	}

	alloc.lock.Acquire()
	defer alloc.lock.Release()
	return alloc.pools[region].Allocate(size)
}

// Free returns a block obtained from Allocate to its region.
func (alloc *PageAllocator) Free(region Region, block mm.VirtualRange) *kernel.Error {
	if region >= numRegions {
		return mm.ErrUnsupported
	}
	if !region.contains(block.Start()) {
		return mm.ErrInvalid
	}

	alloc.lock.Acquire()
	defer alloc.lock.Release()
	return alloc.pools[region].Free(block)
}

// ReserveFree holds room in region for a later CommitFree of block.
func (alloc *PageAllocator) ReserveFree(region Region, block mm.VirtualRange) *kernel.Error {
	if region >= numRegions {
		return mm.ErrUnsupported
	}
	if !region.contains(block.Start()) {
		return mm.ErrInvalid
	}

	alloc.lock.Acquire()
	defer alloc.lock.Release()
	return alloc.pools[region].ReserveFree(block)
}

// CommitFree returns a block passed to ReserveFree.
func (alloc *PageAllocator) CommitFree(region Region, block mm.VirtualRange) *kernel.Error {
	if region >= numRegions {
		return mm.ErrUnsupported
	}

	alloc.lock.Acquire()
	defer alloc.lock.Release()
	return alloc.pools[region].CommitFree(block)
}

// CancelFree drops a reservation made by ReserveFree.
func (alloc *PageAllocator) CancelFree(region Region, block mm.VirtualRange) {
	if region >= numRegions {
		return
	}

	alloc.lock.Acquire()
	alloc.pools[region].CancelFree(block)
	alloc.lock.Release()
}

// Available returns the free bytes held in region for blocks of size.
func (alloc *PageAllocator) Available(region Region, size mm.Size) mm.Size {
	if region >= numRegions {
		return 0
	}

	alloc.lock.Acquire()
	defer alloc.lock.Release()
	return alloc.pools[region].Available(size)
}
