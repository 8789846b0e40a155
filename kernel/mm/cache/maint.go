package cache

import (
	"pios/kernel/cpu"
	"pios/kernel/mm"
)

var (
	// The following functions are mocked by tests and are automatically
	// inlined by the compiler.
	cleanFn           = cpu.CleanDataCacheVA
	cleanToPoUFn      = cpu.CleanDataCacheVAToPoU
	invalidateFn      = cpu.InvalidateDataCacheVA
	cleanInvalidateFn = cpu.CleanInvalidateDataCacheVA
	invalidateInstFn  = cpu.InvalidateInstructionCacheVA
	dsbFn             = cpu.DataSyncBarrier
	dsbInnerFn        = cpu.DataSyncBarrierInner
	dsbInnerStoreFn   = cpu.DataSyncBarrierInnerStore
	isbFn             = cpu.InstructionSyncBarrier
)

// DataLineSize returns the smallest data cache line size in the system.
func DataLineSize() mm.Size {
	return mm.Size(4 << ((ctrReg.Get() >> ctrDMinLineShift) & ctrDMinLineMask))
}

// InstructionLineSize returns the smallest instruction cache line size in the
// system.
func InstructionLineSize() mm.Size {
	return mm.Size(4 << (ctrReg.Get() & ctrIMinLineMask))
}

// forEachLine calls op once for every line of the given size that overlaps
// [start, end).
func forEachLine(start, end mm.VirtualAddress, line mm.Size, op func(uintptr)) {
	if end <= start {
		return
	}

	r, err := mm.NewRange(mm.AlignDown(start, line), end)
	if err != nil {
		return
	}

	it := r.Iter(line)
	for va, ok := it.Next(); ok; va, ok = it.Next() {
		op(uintptr(va))
	}
}

// Clean writes back the data cache line holding va to the point of coherency.
func Clean(va mm.VirtualAddress) {
	dsbFn()
	cleanFn(uintptr(va))
	dsbFn()
}

// CleanRange writes back every data cache line overlapping [start, end) to
// the point of coherency.
func CleanRange(start, end mm.VirtualAddress) {
	dsbFn()
	forEachLine(start, end, DataLineSize(), cleanFn)
	dsbFn()
}

// Invalidate discards the data cache line holding va without writing it back.
func Invalidate(va mm.VirtualAddress) {
	dsbFn()
	invalidateFn(uintptr(va))
	dsbFn()
}

// InvalidateRange discards every data cache line overlapping [start, end).
// Dirty data in partially covered lines is lost as well.
func InvalidateRange(start, end mm.VirtualAddress) {
	dsbFn()
	forEachLine(start, end, DataLineSize(), invalidateFn)
	dsbFn()
}

// CleanInvalidate writes back and then discards the data cache line holding va.
func CleanInvalidate(va mm.VirtualAddress) {
	dsbFn()
	cleanInvalidateFn(uintptr(va))
	dsbFn()
}

// CleanInvalidateRange writes back and discards every data cache line
// overlapping [start, end).
func CleanInvalidateRange(start, end mm.VirtualAddress) {
	dsbFn()
	forEachLine(start, end, DataLineSize(), cleanInvalidateFn)
	dsbFn()
}

// InvalidateInstruction discards the instruction cache line holding va.
func InvalidateInstruction(va mm.VirtualAddress) {
	dsbFn()
	invalidateInstFn(uintptr(va))
	dsbFn()
	isbFn()
}

// InvalidateInstructionRange discards every instruction cache line
// overlapping [start, end).
func InvalidateInstructionRange(start, end mm.VirtualAddress) {
	dsbFn()
	forEachLine(start, end, InstructionLineSize(), invalidateInstFn)
	dsbFn()
	isbFn()
}

// SyncInstructions makes code written to [start, end) visible to instruction
// fetch: data lines are cleaned to the point of unification before the
// matching instruction lines are invalidated.
func SyncInstructions(start, end mm.VirtualAddress) {
	dsbInnerStoreFn()
	forEachLine(start, end, DataLineSize(), cleanToPoUFn)
	dsbInnerFn()
	forEachLine(start, end, InstructionLineSize(), invalidateInstFn)
	dsbInnerFn()
	isbFn()
}
