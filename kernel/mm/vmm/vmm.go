// Package vmm builds and mutates the AArch64 translation tables of both
// halves of the address space and hands out mapped, zeroed memory.
//
// The tables use a 4K granule and three levels of translation starting at
// level 1 (39-bit virtual addresses). The last slot of each root table maps
// the root onto itself so every table can be edited through ordinary loads
// and stores; see tableFor for the address layout.
package vmm

import (
	"pios/kernel"
	"pios/kernel/mm"
	"pios/kernel/mm/cache"
	"pios/kernel/sync"
	"sync/atomic"
)

var (
	mmu      MemoryManagementUnit
	mmuReady atomic.Bool
	initLock sync.Spinlock
)

// Init adopts the root tables installed by the boot code, reserves the page
// used to seed the heap and initializes the frame and page allocators from
// the remaining boot ranges. It may only be called once.
func Init(ranges BootRanges) *kernel.Error {
	initLock.Acquire()
	defer initLock.Release()

	if mmuReady.Load() {
		return mm.ErrAlreadyInitialized
	}

	if err := mmu.setup(ranges); err != nil {
		mm.SetFrameAllocator(nil, nil)
		mmu = MemoryManagementUnit{}
		return err
	}

	mmuReady.Store(true)
	return nil
}

func active() (*MemoryManagementUnit, *kernel.Error) {
	if !mmuReady.Load() {
		return nil, mm.ErrNotInitialized
	}
	return &mmu, nil
}

// Map installs a translation for a 4K, 2M or 1G block at va.
func Map(va mm.VirtualAddress, pa mm.PhysicalAddress, mt MemoryType, size mm.Size) *kernel.Error {
	m, err := active()
	if err != nil {
		return err
	}
	return m.Map(va, pa, mt, size)
}

// Unmap removes the translation for the block at va.
func Unmap(va mm.VirtualAddress, size mm.Size) *kernel.Error {
	m, err := active()
	if err != nil {
		return err
	}
	return m.Unmap(va, size)
}

// Translate returns the physical address mapped at va.
func Translate(va mm.VirtualAddress) (mm.PhysicalAddress, bool) {
	m, err := active()
	if err != nil {
		return 0, false
	}
	return m.Translate(va)
}

// Kzalloc returns a freshly mapped, zeroed block of the given size.
func Kzalloc(size mm.Size, mt MemoryType, region Region) (Allocation, *kernel.Error) {
	m, err := active()
	if err != nil {
		return Allocation{}, err
	}
	return m.Kzalloc(size, mt, region)
}

// Free releases a block returned by Kzalloc.
func Free(block Allocation) *kernel.Error {
	m, err := active()
	if err != nil {
		return err
	}
	return m.Free(block)
}

// Relocate moves the root table of region into the page described by dst.
func Relocate(region Region, dst Allocation) *kernel.Error {
	m, err := active()
	if err != nil {
		return err
	}
	if region >= numRegions {
		return mm.ErrUnsupported
	}
	return m.roots[region].Relocate(dst)
}

// BootstrapPage returns the mapped page reserved during Init for seeding the
// heap.
func BootstrapPage() (Allocation, *kernel.Error) {
	m, err := active()
	if err != nil {
		return Allocation{}, err
	}
	return m.bootstrap, nil
}

// Geometry returns the cache geometry probed during Init.
func Geometry() (cache.Geometry, *kernel.Error) {
	m, err := active()
	if err != nil {
		return cache.Geometry{}, err
	}
	return m.geometry, nil
}
