package vmm

import "pios/kernel/mm"

// The recursive window of each half is the page whose index fields are all
// RecursiveIndex. Walking through slot 511 of the root once, twice or three
// times exposes the level 3, level 2 and level 1 tables as plain pages:
//
//	root table:               (511, 511, 511)
//	level 2 table of l1:      (511, 511, l1)
//	level 3 table of l1, l2:  (511, l1, l2)
//
// The 1G region selected by level 1 index 511 is therefore never handed out.
const (
	// LowerWindow and HigherWindow are the virtual addresses at which the
	// lower and higher root tables map themselves.
	LowerWindow  = mm.VirtualAddress(0x0000007ffffff000)
	HigherWindow = mm.VirtualAddress(0xfffffffffffff000)

	// LowerReservedStart and HigherReservedStart mark the first address of
	// the region claimed by the recursive window in each half.
	LowerReservedStart  = mm.VirtualAddress(mm.RecursiveIndex << mm.Level1Shift)
	HigherReservedStart = mm.VirtualAddress(mm.HigherHalfBase | mm.RecursiveIndex<<mm.Level1Shift)
)

// recursiveVA builds the window address for the given index path.
func recursiveVA(higher bool, l1, l2, l3 uint64) mm.VirtualAddress {
	va := mm.VirtualAddress(l1<<mm.Level1Shift | l2<<mm.Level2Shift | l3<<mm.Level3Shift)
	if higher {
		va |= mm.HigherHalfBase
	}
	return va
}

// tableFor returns the table of the given level that the walk for va passes
// through, viewed through the recursive window of the half owning va.
func tableFor(va mm.VirtualAddress, level uint8) TranslationTable {
	const r = mm.RecursiveIndex
	higher := va.IsHigherHalf()

	var base mm.VirtualAddress
	switch level {
	case 1:
		base = recursiveVA(higher, r, r, r)
	case 2:
		base = recursiveVA(higher, r, r, va.Level1())
	default:
		base = recursiveVA(higher, r, va.Level1(), va.Level2())
	}
	return TranslationTable{base: base, level: level}
}

// inWindow returns true if va falls inside the region reserved for the
// recursive window of its half.
func inWindow(va mm.VirtualAddress) bool {
	return va.Level1() == mm.RecursiveIndex
}

// canonical returns true if va lies inside one of the two translated halves.
func canonical(va mm.VirtualAddress) bool {
	return va < mm.LowerHalfEnd || va >= mm.HigherHalfBase
}
