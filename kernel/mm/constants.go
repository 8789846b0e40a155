package mm

// Size represents a memory block size in bytes.
type Size uint64

// Common memory block sizes.
const (
	Byte Size = 1
	Kb        = 1024 * Byte
	Mb        = 1024 * Kb
	Gb        = 1024 * Mb
)

const (
	// PointerShift is equal to log2(unsafe.Sizeof(uintptr)). Translation
	// table entries are one pointer wide.
	PointerShift = 3

	// PageShift is equal to log2(PageSize). This constant is used when
	// we need to convert an address to a page or frame number (shift
	// right by PageShift) and vice-versa.
	PageShift = 12

	// PageSize defines the translation granule in bytes.
	PageSize = Size(1 << PageShift)

	// HugePageShift is equal to log2(HugePageSize), the size mapped by a
	// level 2 block entry.
	HugePageShift = 21

	// HugePageSize defines the size of a level 2 block.
	HugePageSize = Size(1 << HugePageShift)

	// GiantPageShift is equal to log2 of the size mapped by a level 1
	// block entry.
	GiantPageShift = 30

	// GiantPageSize defines the size of a level 1 block.
	GiantPageSize = Size(1 << GiantPageShift)

	shift16K = 14
	shift64K = 16
)

// Block sizes accepted by Map and the allocators.
const (
	Block4K = PageSize
	Block2M = HugePageSize
	Block1G = GiantPageSize
)

const (
	// TableEntries is the number of descriptors held by one translation
	// table; each level consumes IndexBits bits of the virtual address.
	TableEntries = 512
	IndexBits    = 9

	// Level1Shift, Level2Shift and Level3Shift locate the index fields
	// of a virtual address (bits 38:30, 29:21 and 20:12).
	Level1Shift = 30
	Level2Shift = 21
	Level3Shift = 12

	indexMask = TableEntries - 1

	// VirtualAddressBits is the size of each translated half
	// (TCR_EL1.T0SZ = T1SZ = 25).
	VirtualAddressBits = 39

	// PhysicalAddressBits bounds every PhysicalAddress.
	PhysicalAddressBits = 48

	// MaxPhysicalAddress is the largest representable physical address.
	MaxPhysicalAddress = 1<<PhysicalAddressBits - 1

	// LowerHalfEnd is the first address past the TTBR0 region.
	LowerHalfEnd = 1 << VirtualAddressBits

	// HigherHalfBase is the first address of the TTBR1 region.
	HigherHalfBase = 0xffffff8000000000

	// RecursiveIndex is the level 1 slot that points back at its own table.
	RecursiveIndex = TableEntries - 1

	// HugePoolPercent is the share of every allocator seed range that is
	// set aside for 2M units; the rest backs 4K units.
	HugePoolPercent = 40

	// FreeListCapacity bounds the number of disjoint ranges one free list
	// can track.
	FreeListCapacity = 64
)
