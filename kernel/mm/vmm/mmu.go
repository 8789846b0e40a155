package vmm

import (
	"pios/kernel"
	"pios/kernel/cpu"
	"pios/kernel/kfmt"
	"pios/kernel/mm"
	"pios/kernel/mm/cache"
	"pios/kernel/mm/pmm"
	"pios/kernel/sync"
)

var (
	// The following functions and registers are mocked by tests and are
	// automatically inlined by the compiler.
	ttbrRegs           = [numRegions]*cpu.SysReg{cpu.TTBR0, cpu.TTBR1}
	newGeometryFn      = cache.NewGeometry
	tlbInvalidateVAFn  = cache.TLBInvalidateVA
	tlbInvalidateAllFn = cache.TLBInvalidateAll
	dsbFn              = cpu.DataSyncBarrier
	isbFn              = cpu.InstructionSyncBarrier
	allocFrameFn       = mm.AllocFrame
	freeFrameFn        = mm.FreeFrame

	// ttbrAddrMask selects the table base address bits of TTBRn_EL1.
	ttbrAddrMask = uint64(pageAddrMask)

	errBrokenRecursiveSlot = &kernel.Error{Module: "vmm", Message: "root table lacks a recursive mapping"}
)

// BootRanges describes the free memory handed over by the boot code.
type BootRanges struct {
	FreeFrames      mm.PhysicalRange
	LowerFreePages  mm.VirtualRange
	HigherFreePages mm.VirtualRange
}

// Allocation is a mapped block: its virtual range and the physical range
// backing it.
type Allocation struct {
	VA mm.VirtualRange
	PA mm.PhysicalRange
}

// RootTable is the level 1 table of one half of the address space. All
// accesses to the tables reachable from it are serialized by its lock.
type RootTable struct {
	lock   sync.Spinlock
	region Region
	pa     mm.PhysicalAddress
}

// PhysicalAddress returns the physical placement of the root table.
func (r *RootTable) PhysicalAddress() mm.PhysicalAddress {
	r.lock.Acquire()
	defer r.lock.Release()
	return r.pa
}

// attach adopts the root table currently installed in the half's TTBR and
// checks that its recursive slot points back at itself.
func (r *RootTable) attach(region Region) *kernel.Error {
	r.region = region
	r.pa = mm.PhysicalAddress(ttbrRegs[region].Get() & ttbrAddrMask)

	self, err := r.window(1).Entry(mm.RecursiveIndex)
	if err != nil {
		return err
	}
	if self.Kind() != KindTable || self.Address() != r.pa {
		return errBrokenRecursiveSlot
	}
	return nil
}

// window returns the root table as seen through its recursive mapping.
func (r *RootTable) window(level uint8) TranslationTable {
	base := mm.VirtualAddress(0)
	if r.region == HigherPage {
		base = mm.HigherHalfBase
	}
	return tableFor(base, level)
}

// Relocate moves the root table into the page described by dst, which must
// be a mapped 4K block. The current descriptors are copied over, the
// recursive slot is rebuilt for the new frame and the half's TTBR is
// reprogrammed followed by a full TLB invalidation.
func (r *RootTable) Relocate(dst Allocation) *kernel.Error {
	if dst.VA.Size() != mm.Block4K || dst.PA.Size() != mm.Block4K {
		return mm.ErrUnsupported
	}
	if !dst.VA.Start().Is4KAligned() || !dst.PA.Start().Is4KAligned() {
		return mm.ErrAlign
	}

	r.lock.Acquire()
	defer r.lock.Release()

	if dst.PA.Start() == r.pa {
		return mm.ErrInvalid
	}

	src := r.window(1)
	target := TranslationTable{base: dst.VA.Start(), level: 1}
	for index := uint64(0); index < mm.RecursiveIndex; index++ {
		*target.slot(index) = *src.slot(index)
	}
	if err := target.setRecursive(dst.PA.Start()); err != nil {
		return err
	}

	dsbFn()
	ttbrRegs[r.region].Modify(ttbrAddrMask, uint64(dst.PA.Start()))
	isbFn()
	tlbInvalidateAllFn()

	kfmt.Printf("[vmm] %s root table relocated: 0x%x -> 0x%x\n", r.region.String(), uint64(r.pa), uint64(dst.PA.Start()))
	r.pa = dst.PA.Start()
	return nil
}

// MemoryManagementUnit owns the two root tables, the allocators that feed
// them and a snapshot of the cache geometry.
type MemoryManagementUnit struct {
	roots    [numRegions]RootTable
	geometry cache.Geometry
	frames   pmm.FrameAllocator
	pages    PageAllocator

	// bootstrap is the page carved out during init to seed the heap.
	bootstrap Allocation
}

// rootFor selects the root table translating va.
func (m *MemoryManagementUnit) rootFor(va mm.VirtualAddress) *RootTable {
	if va.IsHigherHalf() {
		return &m.roots[HigherPage]
	}
	return &m.roots[LowerPage]
}

// setup adopts the boot root tables, reserves the heap bootstrap page and
// seeds the allocators with what remains of the boot ranges.
func (m *MemoryManagementUnit) setup(ranges BootRanges) *kernel.Error {
	for region := range m.roots {
		if err := m.roots[region].attach(Region(region)); err != nil {
			return err
		}
	}
	m.geometry = newGeometryFn()

	frames := ranges.FreeFrames.AlignTo4K()
	bootFrame, err := frames.PopFront4K()
	if err != nil {
		return mm.ErrNoFrame
	}

	higher, err := clipSeed(HigherPage, ranges.HigherFreePages)
	if err != nil {
		return err
	}
	higher = higher.AlignTo4K()
	bootPage, err := higher.PopFront4K()
	if err != nil {
		return mm.ErrNoPage
	}

	if err = m.frames.Init(frames); err != nil {
		return err
	}
	if err = m.pages.Init(ranges.LowerFreePages, higher); err != nil {
		return err
	}
	mm.SetFrameAllocator(m.frames.AllocFrame, m.frames.FreeFrame)

	if err = m.Map(bootPage.Start(), bootFrame.Start(), RWNormal, mm.Block4K); err != nil {
		return err
	}
	memclrFn(bootPage.Start(), mm.Block4K)
	m.bootstrap = Allocation{VA: bootPage, PA: bootFrame}

	m.printInfo()
	return nil
}

func (m *MemoryManagementUnit) printInfo() {
	kfmt.Printf("[vmm] root tables: lower 0x%x, higher 0x%x\n", uint64(m.roots[LowerPage].pa), uint64(m.roots[HigherPage].pa))
	kfmt.Printf("[vmm] bootstrap page: 0x%x -> 0x%x\n", uint64(m.bootstrap.VA.Start()), uint64(m.bootstrap.PA.Start()))
	kfmt.Printf(
		"[vmm] free pages: lower %dKb, higher %dKb\n",
		uint64((m.pages.Available(LowerPage, mm.Block4K)+m.pages.Available(LowerPage, mm.Block2M))/mm.Kb),
		uint64((m.pages.Available(HigherPage, mm.Block4K)+m.pages.Available(HigherPage, mm.Block2M))/mm.Kb),
	)

	g := &m.geometry
	kfmt.Printf("[cache] levels: %d, LoC: %d, LoUU: %d, LoUIS: %d, min line I/D: %d/%d\n",
		g.NumLevels, g.LoC, g.LoUU, g.LoUIS, g.IMinLine, g.DMinLine)
	for level := uint8(0); level < g.NumLevels; level++ {
		lvl := &g.Levels[level]
		if lvl.Instruction.LineSize != 0 {
			kfmt.Printf("[cache] L%d instruction: %d sets, %d ways, %d byte lines\n",
				level+1, lvl.Instruction.Sets, lvl.Instruction.Ways, lvl.Instruction.LineSize)
		}
		if lvl.Data.LineSize != 0 {
			kfmt.Printf("[cache] L%d %s: %d sets, %d ways, %d byte lines\n",
				level+1, lvl.Type.String(), lvl.Data.Sets, lvl.Data.Ways, lvl.Data.LineSize)
		}
	}
}
