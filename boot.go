package main

import (
	"pios/kernel/kmain"
	"pios/kernel/mm/vmm"
)

var (
	// Filled in by the boot code before main runs.
	vectorBase uintptr
	bootRanges vmm.BootRanges
)

// main is the only Go symbol that is visible (exported) from the boot code.
// This function works as a trampoline for calling the actual kernel
// entrypoint (kmain.Kmain) and is intentionally defined to prevent the Go
// compiler from optimizing away the actual kernel code as it is not aware of
// the presence of the boot code.
//
// Package-level variables are passed as arguments to prevent the compiler
// from inlining the call and removing Kmain from the generated object file.
//
// main is not expected to return. If it does, the boot code will halt the
// CPU.
func main() {
	kmain.Kmain(vectorBase, &bootRanges)
}
