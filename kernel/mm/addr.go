package mm

import "pios/kernel"

// VirtualAddress is an address in either half of the virtual address space.
type VirtualAddress uint64

// PhysicalAddress is an address on the system bus. Its value is always below
// 1 << PhysicalAddressBits.
type PhysicalAddress uint64

// Address is satisfied by the two address kinds so that ranges and free lists
// can be shared between the physical and virtual allocators.
type Address interface {
	VirtualAddress | PhysicalAddress
}

// NewPhysicalAddress validates v and returns it as a PhysicalAddress.
func NewPhysicalAddress(v uint64) (PhysicalAddress, *kernel.Error) {
	if v > MaxPhysicalAddress {
		return 0, ErrOverflow
	}
	return PhysicalAddress(v), nil
}

func isAligned[A Address](a A, shift uint) bool {
	return uint64(a)&^(1<<shift-1) == uint64(a)
}

// AlignDown rounds a down to a multiple of size, which must be a power of 2.
func AlignDown[A Address](a A, size Size) A {
	return A(uint64(a) &^ (uint64(size) - 1))
}

// AlignUp rounds a up to a multiple of size, which must be a power of 2.
func AlignUp[A Address](a A, size Size) A {
	return A((uint64(a) + uint64(size) - 1) &^ (uint64(size) - 1))
}

// Is4KAligned returns true if a is a multiple of 4KB.
func (a PhysicalAddress) Is4KAligned() bool { return isAligned(a, PageShift) }

// Is16KAligned returns true if a is a multiple of 16KB.
func (a PhysicalAddress) Is16KAligned() bool { return isAligned(a, shift16K) }

// Is64KAligned returns true if a is a multiple of 64KB.
func (a PhysicalAddress) Is64KAligned() bool { return isAligned(a, shift64K) }

// Is2MAligned returns true if a is a multiple of 2MB.
func (a PhysicalAddress) Is2MAligned() bool { return isAligned(a, HugePageShift) }

// Is1GAligned returns true if a is a multiple of 1GB.
func (a PhysicalAddress) Is1GAligned() bool { return isAligned(a, GiantPageShift) }

// Shift4K returns a >> 12, the form stored in page and table descriptors.
func (a PhysicalAddress) Shift4K() uint64 { return uint64(a) >> PageShift }

// Shift2M returns a >> 21, the form stored in level 2 block descriptors.
func (a PhysicalAddress) Shift2M() uint64 { return uint64(a) >> HugePageShift }

// Shift1G returns a >> 30, the form stored in level 1 block descriptors.
func (a PhysicalAddress) Shift1G() uint64 { return uint64(a) >> GiantPageShift }

// Is4KAligned returns true if a is a multiple of 4KB.
func (a VirtualAddress) Is4KAligned() bool { return isAligned(a, PageShift) }

// Is16KAligned returns true if a is a multiple of 16KB.
func (a VirtualAddress) Is16KAligned() bool { return isAligned(a, shift16K) }

// Is64KAligned returns true if a is a multiple of 64KB.
func (a VirtualAddress) Is64KAligned() bool { return isAligned(a, shift64K) }

// Is2MAligned returns true if a is a multiple of 2MB.
func (a VirtualAddress) Is2MAligned() bool { return isAligned(a, HugePageShift) }

// Is1GAligned returns true if a is a multiple of 1GB.
func (a VirtualAddress) Is1GAligned() bool { return isAligned(a, GiantPageShift) }

// Shift4K returns a >> 12.
func (a VirtualAddress) Shift4K() uint64 { return uint64(a) >> PageShift }

// Shift2M returns a >> 21.
func (a VirtualAddress) Shift2M() uint64 { return uint64(a) >> HugePageShift }

// Shift1G returns a >> 30.
func (a VirtualAddress) Shift1G() uint64 { return uint64(a) >> GiantPageShift }

// IsHigherHalf returns true if a is translated through TTBR1.
func (a VirtualAddress) IsHigherHalf() bool { return a>>63 == 1 }

// Level1 returns the level 1 table index held in bits 38:30.
func (a VirtualAddress) Level1() uint64 { return (uint64(a) >> Level1Shift) & indexMask }

// Level2 returns the level 2 table index held in bits 29:21.
func (a VirtualAddress) Level2() uint64 { return (uint64(a) >> Level2Shift) & indexMask }

// Level3 returns the level 3 table index held in bits 20:12.
func (a VirtualAddress) Level3() uint64 { return (uint64(a) >> Level3Shift) & indexMask }

// Offset returns the byte offset inside the 4KB page (bits 11:0).
func (a VirtualAddress) Offset() uint64 { return uint64(a) & uint64(PageSize-1) }

// Index returns the table index for the given translation level (1-3).
func (a VirtualAddress) Index(level uint8) uint64 {
	switch level {
	case 1:
		return a.Level1()
	case 2:
		return a.Level2()
	default:
		return a.Level3()
	}
}

func (a VirtualAddress) setField(shift uint, mask, value uint64) (VirtualAddress, *kernel.Error) {
	if value > mask {
		return a, ErrOverflow
	}
	return VirtualAddress((uint64(a) &^ (mask << shift)) | value<<shift), nil
}

// SetLevel1 returns a copy of a whose level 1 index is replaced by idx.
func (a VirtualAddress) SetLevel1(idx uint64) (VirtualAddress, *kernel.Error) {
	return a.setField(Level1Shift, indexMask, idx)
}

// SetLevel2 returns a copy of a whose level 2 index is replaced by idx.
func (a VirtualAddress) SetLevel2(idx uint64) (VirtualAddress, *kernel.Error) {
	return a.setField(Level2Shift, indexMask, idx)
}

// SetLevel3 returns a copy of a whose level 3 index is replaced by idx.
func (a VirtualAddress) SetLevel3(idx uint64) (VirtualAddress, *kernel.Error) {
	return a.setField(Level3Shift, indexMask, idx)
}

// SetOffset returns a copy of a whose page offset is replaced by off.
func (a VirtualAddress) SetOffset(off uint64) (VirtualAddress, *kernel.Error) {
	return a.setField(0, uint64(PageSize-1), off)
}
