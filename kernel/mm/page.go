package mm

import (
	"math"
	"pios/kernel"
)

// Frame describes a physical memory page index.
type Frame uint64

const (
	// InvalidFrame is returned by page allocators when
	// they fail to reserve the requested frame.
	InvalidFrame = Frame(math.MaxUint64)

	// MaxFrame is the last frame below 1 << PhysicalAddressBits.
	MaxFrame = Frame(MaxPhysicalAddress >> PageShift)
)

// NewFrame returns the frame with index n or ErrOverflow if n addresses memory
// beyond MaxPhysicalAddress.
func NewFrame(n uint64) (Frame, *kernel.Error) {
	if n > uint64(MaxFrame) {
		return InvalidFrame, ErrOverflow
	}
	return Frame(n), nil
}

// Valid returns true if this is a valid frame.
func (f Frame) Valid() bool {
	return f <= MaxFrame
}

// Address returns the physical address of the first byte in this Frame.
func (f Frame) Address() PhysicalAddress {
	return PhysicalAddress(f << PageShift)
}

// FrameFromAddress returns the Frame that contains the given physical address.
// Unaligned addresses are rounded down.
func FrameFromAddress(physAddr PhysicalAddress) Frame {
	return Frame(physAddr >> PageShift)
}

var (
	frameAllocator FrameAllocatorFn
	frameReleaser  FrameReleaserFn
)

// FrameAllocatorFn is a function that can allocate physical frames.
type FrameAllocatorFn func() (Frame, *kernel.Error)

// FrameReleaserFn returns a frame obtained from a FrameAllocatorFn.
type FrameReleaserFn func(Frame) *kernel.Error

// SetFrameAllocator registers the functions used by the vmm code when
// translation tables need backing frames.
func SetFrameAllocator(allocFn FrameAllocatorFn, releaseFn FrameReleaserFn) {
	frameAllocator = allocFn
	frameReleaser = releaseFn
}

// AllocFrame allocates a new 4K physical frame using the currently active
// physical frame allocator.
func AllocFrame() (Frame, *kernel.Error) {
	if frameAllocator == nil {
		return InvalidFrame, ErrNotInitialized
	}
	return frameAllocator()
}

// FreeFrame hands f back to the active physical frame allocator.
func FreeFrame(f Frame) *kernel.Error {
	if frameReleaser == nil {
		return ErrNotInitialized
	}
	return frameReleaser(f)
}

// Page describes a virtual memory page index.
type Page uint64

// Address returns the virtual address of the first byte in this Page.
func (p Page) Address() VirtualAddress {
	return VirtualAddress(p << PageShift)
}

// PageFromAddress returns the Page that contains the given virtual address.
// Unaligned addresses are rounded down.
func PageFromAddress(virtAddr VirtualAddress) Page {
	return Page(virtAddr >> PageShift)
}
