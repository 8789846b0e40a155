// Package goruntime backs the Go allocator with the kernel's memory
// management code. The sys* functions below replace their runtime
// counterparts in the kernel image; see tools/redirects.
package goruntime

import (
	"pios/kernel"
	"pios/kernel/kfmt"
	"pios/kernel/mm"
	"pios/kernel/mm/heap"
	"pios/kernel/mm/vmm"
	"pios/kernel/sync"
	"unsafe"
)

var (
	mapFn        = vmm.Map
	frameAllocFn = mm.AllocFrame
	heapAllocFn  = heap.Alloc
	memsetFn     = kernel.Memset
	panicFn      = kfmt.Panic

	// arena is the part of the higher half handed to the Go allocator.
	// sysReserve carves regions from its front.
	arena     mm.VirtualRange
	arenaLock sync.Spinlock

	errArenaExhausted = &kernel.Error{Module: "goruntime", Message: "runtime arena exhausted"}
)

// Init hands the virtual range region to the Go allocator. Address space
// reservations are served from it; backing memory comes from the frame
// allocator and the kernel heap.
func Init(region mm.VirtualRange) *kernel.Error {
	aligned := region.AlignTo4K()
	if aligned.Empty() {
		return mm.ErrNoPage
	}

	arenaLock.Acquire()
	arena = aligned
	arenaLock.Release()

	kfmt.Printf("[goruntime] arena: [0x%x - 0x%x]\n", uint64(aligned.Start()), uint64(aligned.End()))
	return nil
}

func roundToPage(size uintptr) mm.Size {
	return mm.Size(mm.AlignUp(mm.VirtualAddress(size), mm.PageSize))
}

// reserveRegion carves size bytes (a multiple of the page size) from the
// front of the arena.
func reserveRegion(size mm.Size) (mm.VirtualAddress, *kernel.Error) {
	arenaLock.Acquire()
	defer arenaLock.Release()

	if arena.Size() < size {
		return 0, errArenaExhausted
	}

	start := arena.Start()
	arena, _ = mm.NewRange(start+mm.VirtualAddress(size), arena.End())
	return start, nil
}

// mapRegion backs each page of [start, start+size) with a cleared frame.
func mapRegion(start mm.VirtualAddress, size mm.Size) *kernel.Error {
	for va := start; va < start+mm.VirtualAddress(size); va += mm.VirtualAddress(mm.PageSize) {
		frame, err := frameAllocFn()
		if err != nil {
			return err
		}
		if err = mapFn(va, frame.Address(), vmm.RWNormal, mm.Block4K); err != nil {
			return err
		}
		memsetFn(uintptr(va), 0, uintptr(mm.PageSize))
	}
	return nil
}

// sysReserve reserves address space without allocating any memory or
// establishing any page mappings.
//
// This function replaces runtime.sysReserveOS and is required for
// initializing the Go allocator.
//
//go:redirect-from runtime.sysReserveOS
//go:nosplit
func sysReserve(_ unsafe.Pointer, size uintptr) unsafe.Pointer {
	start, err := reserveRegion(roundToPage(size))
	if err != nil {
		panic(err)
	}
	return unsafe.Pointer(uintptr(start))
}

// sysMap establishes RW mappings for a region previously returned by
// sysReserve.
//
// This function replaces runtime.sysMapOS.
//
//go:redirect-from runtime.sysMapOS
//go:nosplit
func sysMap(virtAddr unsafe.Pointer, size uintptr) {
	// The allocator only passes addresses inside a reserved region.
	start := mm.AlignUp(mm.VirtualAddress(uintptr(virtAddr)), mm.PageSize)
	if err := mapRegion(start, roundToPage(size)); err != nil {
		panicFn(err)
	}
}

// sysAlloc returns zeroed memory for the allocator's own metadata. Requests
// that fit in a 2M block are served by the kernel heap; larger ones get
// freshly reserved and mapped address space.
//
// This function replaces runtime.sysAllocOS.
//
//go:redirect-from runtime.sysAllocOS
//go:nosplit
func sysAlloc(size uintptr) unsafe.Pointer {
	regionSize := roundToPage(size)
	if regionSize <= mm.Block2M {
		addr, err := heapAllocFn(regionSize, mm.PageSize)
		if err != nil {
			return unsafe.Pointer(uintptr(0))
		}
		return unsafe.Pointer(uintptr(addr))
	}

	start, err := reserveRegion(regionSize)
	if err != nil {
		return unsafe.Pointer(uintptr(0))
	}
	if err = mapRegion(start, regionSize); err != nil {
		return unsafe.Pointer(uintptr(0))
	}
	return unsafe.Pointer(uintptr(start))
}

func init() {
	// Dummy calls so the compiler does not optimize away the functions in
	// this file.
	zeroPtr := unsafe.Pointer(uintptr(0))

	sysReserve(zeroPtr, 0)
	sysMap(zeroPtr, 0)
	sysAlloc(0)
}
