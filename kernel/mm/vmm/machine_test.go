package vmm

import (
	"bytes"
	"pios/kernel/cpu"
	"pios/kernel/kfmt"
	"pios/kernel/mm"
	"pios/kernel/mm/cache"
	"testing"
)

const (
	// Fresh frames are filled with a pattern that sets the valid bit so
	// that tests notice memory that was never cleared.
	garbageWord = 0xa5a5a5a5a5a5a5a5

	hwAddrMask = 0x0000_ffff_ffff_f000

	lowerRootPA  = mm.PhysicalAddress(0x0010_0000)
	higherRootPA = mm.PhysicalAddress(0x0010_1000)
)

// fakeMachine simulates physical memory and the stage 1 table walker so the
// recursive window can be exercised on the host.
type fakeMachine struct {
	t      *testing.T
	memory map[mm.Frame]*[mm.TableEntries]uint64
	ttbr   [numRegions]uint64
	log    bytes.Buffer

	tlbVA      []mm.VirtualAddress
	tlbAll     int
	cleanedInv int
}

func newFakeMachine(t *testing.T) *fakeMachine {
	m := &fakeMachine{t: t, memory: make(map[mm.Frame]*[mm.TableEntries]uint64)}

	// The boot code hands over empty roots whose last slot maps the root.
	for region, pa := range [numRegions]mm.PhysicalAddress{lowerRootPA, higherRootPA} {
		root := m.frame(pa)
		*root = [mm.TableEntries]uint64{}
		root[mm.RecursiveIndex] = uint64(pa) | validBit | typeBit | afBit
		m.ttbr[region] = uint64(pa)
	}
	return m
}

func (m *fakeMachine) frame(pa mm.PhysicalAddress) *[mm.TableEntries]uint64 {
	f := mm.FrameFromAddress(pa)
	words, ok := m.memory[f]
	if !ok {
		words = new([mm.TableEntries]uint64)
		for i := range words {
			words[i] = garbageWord
		}
		m.memory[f] = words
	}
	return words
}

// walk translates va the way the hardware would.
func (m *fakeMachine) walk(va mm.VirtualAddress) (mm.PhysicalAddress, bool) {
	var table uint64
	switch {
	case va < mm.LowerHalfEnd:
		table = m.ttbr[LowerPage]
	case va >= mm.HigherHalfBase:
		table = m.ttbr[HigherPage]
	default:
		return 0, false
	}
	table &= hwAddrMask

	shifts := [...]uint{mm.Level1Shift, mm.Level2Shift, mm.Level3Shift}
	for level, shift := range shifts {
		raw := m.frame(mm.PhysicalAddress(table))[(uint64(va)>>shift)&(mm.TableEntries-1)]
		if raw&1 == 0 {
			return 0, false
		}

		offsetMask := uint64(1)<<shift - 1
		last := level == len(shifts)-1
		switch {
		case raw&2 == 0 && last:
			return 0, false
		case raw&2 == 0 || last:
			return mm.PhysicalAddress(raw&hwAddrMask&^offsetMask | uint64(va)&offsetMask), true
		}
		table = raw & hwAddrMask
	}
	return 0, false
}

func (m *fakeMachine) entryPtr(va mm.VirtualAddress) *uint64 {
	pa, ok := m.walk(va)
	if !ok {
		m.t.Fatalf("translation fault while accessing 0x%x", uint64(va))
	}
	return &m.frame(pa)[(uint64(pa)&uint64(mm.PageSize-1))>>mm.PointerShift]
}

func (m *fakeMachine) memclr(start mm.VirtualAddress, size mm.Size) {
	for off := mm.VirtualAddress(0); off < mm.VirtualAddress(size); off += 8 {
		*m.entryPtr(start + off) = 0
	}
}

// zeroed returns true if every word of [start, start+size) reads zero.
func (m *fakeMachine) zeroed(start mm.VirtualAddress, size mm.Size) bool {
	for off := mm.VirtualAddress(0); off < mm.VirtualAddress(size); off += 8 {
		if *m.entryPtr(start + off) != 0 {
			return false
		}
	}
	return true
}

// install points the package hooks at the simulated machine and returns a
// function that restores them.
func (m *fakeMachine) install() func() {
	origEntryPtr, origMemclr, origTTBR := entryPtrFn, memclrFn, ttbrRegs
	origGeometry, origTLBVA, origTLBAll := newGeometryFn, tlbInvalidateVAFn, tlbInvalidateAllFn
	origDSB, origISB, origCleanInv := dsbFn, isbFn, cleanInvalidateRangeFn

	entryPtrFn = m.entryPtr
	memclrFn = m.memclr
	ttbrRegs = [numRegions]*cpu.SysReg{
		cpu.NewSysReg("TTBR0_EL1", func() uint64 { return m.ttbr[LowerPage] }, func(v uint64) { m.ttbr[LowerPage] = v }),
		cpu.NewSysReg("TTBR1_EL1", func() uint64 { return m.ttbr[HigherPage] }, func(v uint64) { m.ttbr[HigherPage] = v }),
	}
	newGeometryFn = func() cache.Geometry {
		g := cache.Geometry{NumLevels: 1, LoC: 1, LoUU: 1, LoUIS: 1, IMinLine: 64, DMinLine: 64}
		g.Levels[0] = cache.Level{
			Type:        cache.Separate,
			Instruction: cache.SetWay{Sets: 256, Ways: 2, LineSize: 64},
			Data:        cache.SetWay{Sets: 128, Ways: 4, LineSize: 64},
		}
		return g
	}
	tlbInvalidateVAFn = func(va mm.VirtualAddress) { m.tlbVA = append(m.tlbVA, va) }
	tlbInvalidateAllFn = func() { m.tlbAll++ }
	dsbFn, isbFn = func() {}, func() {}
	cleanInvalidateRangeFn = func(_, _ mm.VirtualAddress) { m.cleanedInv++ }
	kfmt.SetOutputSink(&m.log)

	return func() {
		entryPtrFn, memclrFn, ttbrRegs = origEntryPtr, origMemclr, origTTBR
		newGeometryFn, tlbInvalidateVAFn, tlbInvalidateAllFn = origGeometry, origTLBVA, origTLBAll
		dsbFn, isbFn, cleanInvalidateRangeFn = origDSB, origISB, origCleanInv
		mm.SetFrameAllocator(nil, nil)
		kfmt.SetOutputSink(nil)
	}
}

func testBootRanges(t *testing.T) BootRanges {
	t.Helper()

	frames, err := mm.NewRange(mm.PhysicalAddress(0x4000_0000), mm.PhysicalAddress(0x4000_0000+32*mm.Mb))
	if err != nil {
		t.Fatal(err)
	}
	lower, err := mm.NewRange(mm.VirtualAddress(0x1000_0000), mm.VirtualAddress(0x1000_0000+64*mm.Mb))
	if err != nil {
		t.Fatal(err)
	}
	higher, err := mm.NewRange(mm.VirtualAddress(mm.HigherHalfBase), mm.VirtualAddress(mm.HigherHalfBase+64*mm.Mb))
	if err != nil {
		t.Fatal(err)
	}
	return BootRanges{FreeFrames: frames, LowerFreePages: lower, HigherFreePages: higher}
}

// newTestMMU sets up a MemoryManagementUnit on top of a fresh simulated
// machine.
func newTestMMU(t *testing.T) (*MemoryManagementUnit, *fakeMachine, func()) {
	t.Helper()

	machine := newFakeMachine(t)
	restore := machine.install()

	m := new(MemoryManagementUnit)
	if err := m.setup(testBootRanges(t)); err != nil {
		restore()
		t.Fatal(err)
	}
	return m, machine, restore
}
