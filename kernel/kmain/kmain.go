// Package kmain contains the kernel entrypoint invoked by the boot code.
package kmain

import (
	"pios/kernel"
	"pios/kernel/cpu"
	"pios/kernel/goruntime"
	"pios/kernel/kfmt"
	"pios/kernel/mm/heap"
	"pios/kernel/mm/vmm"
)

// runtimeArenaPercent is the share of the higher-half free pages handed to
// the Go allocator. The rest is managed by the page allocator.
const runtimeArenaPercent = 50

var (
	errKmainReturned = &kernel.Error{Module: "kmain", Message: "Kmain returned"}
	errWrongEL       = &kernel.Error{Module: "kmain", Message: "kernel must be entered at EL1"}

	// The following functions are mocked by tests and are automatically
	// inlined by the compiler.
	exceptionLevelFn = cpu.ExceptionLevel
	setVectorBaseFn  = cpu.SetVectorBase
	vmmInitFn        = vmm.Init
	bootstrapPageFn  = vmm.BootstrapPage
	heapInitFn       = heap.Init
	runtimeInitFn    = goruntime.Init
	panicFn          = kfmt.Panic
)

// Kmain is the only Go symbol that is visible (exported) from the boot code.
// It is invoked after the boot code has enabled the MMU with the identity
// and higher-half root tables in place.
//
// The boot code passes the physical address of the exception vector table
// and the memory left free after loading the kernel.
//
// Kmain is not expected to return. If it does, the boot code will halt the
// CPU.
//
//go:noinline
func Kmain(vectorBase uintptr, ranges *vmm.BootRanges) {
	if err := boot(vectorBase, *ranges); err != nil {
		panicFn(err)
		return
	}

	// Use kfmt.Panic instead of panic to prevent the compiler from
	// treating kfmt.Panic as dead-code and eliminating it.
	panicFn(errKmainReturned)
}

func boot(vectorBase uintptr, ranges vmm.BootRanges) *kernel.Error {
	if el := exceptionLevelFn(); el != 1 {
		kfmt.Printf("[kmain] running at EL%d\n", el)
		return errWrongEL
	}
	setVectorBaseFn(vectorBase)

	pages, arena, err := ranges.HigherFreePages.Split(100 - runtimeArenaPercent)
	if err != nil {
		return err
	}
	ranges.HigherFreePages = pages

	if err = vmmInitFn(ranges); err != nil {
		return err
	}

	seed, err := bootstrapPageFn()
	if err != nil {
		return err
	}
	if err = heapInitFn(seed.VA); err != nil {
		return err
	}

	return runtimeInitFn(arena)
}
