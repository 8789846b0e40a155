package cache

import (
	"pios/kernel/cpu"
	"pios/kernel/mm"
)

var (
	tlbiAllFn  = cpu.TLBInvalidateAll
	tlbiASIDFn = cpu.TLBInvalidateASID
	tlbiVAFn   = cpu.TLBInvalidateVA
)

const (
	tlbiASIDShift = 48
	tlbiVAMask    = 1<<44 - 1
)

// TLBInvalidateAll drops every EL1 translation on all cores of the inner
// shareable domain.
func TLBInvalidateAll() {
	dsbInnerStoreFn()
	tlbiAllFn()
	dsbInnerFn()
	isbFn()
}

// TLBInvalidateASID drops the translations tagged with asid.
func TLBInvalidateASID(asid uint8) {
	dsbInnerStoreFn()
	tlbiASIDFn(uint64(asid) << tlbiASIDShift)
	dsbInnerFn()
	isbFn()
}

// TLBInvalidateVA drops the translations for the page holding va. Callers
// invoke it after changing or removing a valid descriptor.
func TLBInvalidateVA(va mm.VirtualAddress) {
	dsbInnerStoreFn()
	tlbiVAFn(va.Shift4K() & tlbiVAMask)
	dsbInnerFn()
	isbFn()
}
