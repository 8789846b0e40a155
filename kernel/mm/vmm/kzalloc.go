package vmm

import (
	"pios/kernel"
	"pios/kernel/kfmt"
	"pios/kernel/mm"
	"pios/kernel/mm/cache"
)

// cleanInvalidateRangeFn is mocked by tests.
var cleanInvalidateRangeFn = cache.CleanInvalidateRange

// Kzalloc reserves a virtual block in region and a physical block of the
// same size, maps them with the requested memory type and clears the
// memory. Size must be mm.Block4K or mm.Block2M. When either allocator is
// exhausted the block obtained from the other one is handed back and
// ErrNoPage or ErrNoFrame is returned.
func (m *MemoryManagementUnit) Kzalloc(size mm.Size, mt MemoryType, region Region) (Allocation, *kernel.Error) {
	if size != mm.Block4K && size != mm.Block2M {
		return Allocation{}, mm.ErrUnsupported
	}
	if mt == Invalid || mt == Table {
		return Allocation{}, mm.ErrInvalid
	}

	va, err := m.pages.Allocate(region, size)
	if err != nil {
		return Allocation{}, err
	}

	pa, err := m.frames.Allocate(size)
	if err != nil {
		m.rollback(region, va, mm.PhysicalRange{})
		return Allocation{}, err
	}

	if err = m.mapZeroed(va, pa, mt); err != nil {
		m.rollback(region, va, pa)
		return Allocation{}, err
	}

	return Allocation{VA: va, PA: pa}, nil
}

// mapZeroed maps va to pa and clears the block. Memory types that cannot be
// cleared through their own mapping are staged through a RWNormal mapping
// that is written back to memory and then replaced.
func (m *MemoryManagementUnit) mapZeroed(va mm.VirtualRange, pa mm.PhysicalRange, mt MemoryType) *kernel.Error {
	size := va.Size()
	staged := mt != RWNormal && mt != RWXNormal

	mapType := mt
	if staged {
		mapType = RWNormal
	}
	if err := m.Map(va.Start(), pa.Start(), mapType, size); err != nil {
		return err
	}

	memclrFn(va.Start(), size)
	if !staged {
		return nil
	}

	cleanInvalidateRangeFn(va.Start(), va.End())
	if err := m.Unmap(va.Start(), size); err != nil {
		return err
	}
	return m.Map(va.Start(), pa.Start(), mt, size)
}

// rollback returns the blocks of a failed Kzalloc to their allocators.
// Blocks that cannot be returned are reported in the kernel log.
func (m *MemoryManagementUnit) rollback(region Region, va mm.VirtualRange, pa mm.PhysicalRange) {
	if !pa.Empty() {
		if err := m.frames.Free(pa); err != nil {
			kfmt.Printf("[vmm] lost frames 0x%x-0x%x: %s\n", uint64(pa.Start()), uint64(pa.End()), err.Message)
		}
	}
	if err := m.pages.Free(region, va); err != nil {
		kfmt.Printf("[vmm] lost pages 0x%x-0x%x: %s\n", uint64(va.Start()), uint64(va.End()), err.Message)
	}
}

// Free unmaps a block returned by Kzalloc and hands both halves back to
// their allocators. Room in both free lists is reserved before the block
// is unmapped, so a failed Free leaves the block mapped and owned by the
// caller.
func (m *MemoryManagementUnit) Free(block Allocation) *kernel.Error {
	region := LowerPage
	if block.VA.Start().IsHigherHalf() {
		region = HigherPage
	}

	if block.VA.Size() != block.PA.Size() {
		return mm.ErrInvalid
	}

	if err := m.frames.ReserveFree(block.PA); err != nil {
		return err
	}
	if err := m.pages.ReserveFree(region, block.VA); err != nil {
		m.frames.CancelFree(block.PA)
		return err
	}
	if err := m.Unmap(block.VA.Start(), block.VA.Size()); err != nil {
		m.frames.CancelFree(block.PA)
		m.pages.CancelFree(region, block.VA)
		return err
	}

	if err := m.frames.CommitFree(block.PA); err != nil {
		m.pages.CancelFree(region, block.VA)
		return err
	}
	return m.pages.CommitFree(region, block.VA)
}
