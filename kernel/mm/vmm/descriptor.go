package vmm

import (
	"pios/kernel"
	"pios/kernel/mm"
)

// DescriptorKind identifies the variant held by a Descriptor.
type DescriptorKind uint8

// The descriptor variants.
const (
	KindInvalid DescriptorKind = iota
	KindL1Block
	KindL2Block
	KindTable
	KindPage
)

// String implements fmt.Stringer for DescriptorKind.
func (k DescriptorKind) String() string {
	switch k {
	case KindL1Block:
		return "l1-block"
	case KindL2Block:
		return "l2-block"
	case KindTable:
		return "table"
	case KindPage:
		return "page"
	default:
		return "invalid"
	}
}

// Descriptor bit layout (4K granule, stage 1).
const (
	validBit = 1 << 0
	typeBit  = 1 << 1

	attrIndxShift = 2
	attrIndxMask  = 0x7 << attrIndxShift
	nsBit         = 1 << 5
	apShift       = 6
	apMask        = 0x3 << apShift
	shShift       = 8
	shMask        = 0x3 << shShift
	afBit         = 1 << 10
	nGBit         = 1 << 11
	contiguousBit = 1 << 52
	pxnBit        = 1 << 53
	uxnBit        = 1 << 54

	pxnTableBit  = 1 << 59
	uxnTableBit  = 1 << 60
	apTableShift = 61
	apTableMask  = 0x3 << apTableShift
	nsTableBit   = 1 << 63

	tableOnlyMask = pxnTableBit | uxnTableBit | apTableMask | nsTableBit

	pageAddrMask    = mm.MaxPhysicalAddress &^ (1<<mm.PageShift - 1)
	l2BlockAddrMask = mm.MaxPhysicalAddress &^ (1<<mm.HugePageShift - 1)
	l1BlockAddrMask = mm.MaxPhysicalAddress &^ (1<<mm.GiantPageShift - 1)
)

// Descriptor models one 64-bit translation table entry. The zero value is an
// Invalid entry. A descriptor moves from Invalid to one of the L1Block,
// L2Block or Table variants through the matching Set method; its output
// address and attributes may then be installed exactly once each. Re-typing a
// populated entry requires a Reset.
type Descriptor struct {
	kind    DescriptorKind
	raw     uint64
	addrSet bool
	attrSet bool
}

// DecodeDescriptor reconstructs the descriptor stored as raw in a table of
// the given level. The result is treated as fully populated.
func DecodeDescriptor(level uint8, raw uint64) Descriptor {
	if raw&validBit == 0 {
		return Descriptor{}
	}

	d := Descriptor{raw: raw, addrSet: true, attrSet: true}
	switch {
	case level == 3 && raw&typeBit != 0:
		d.kind = KindPage
	case level == 3:
		// 0b01 is a reserved encoding at level 3.
		return Descriptor{}
	case raw&typeBit != 0:
		d.kind = KindTable
	case level == 1:
		d.kind = KindL1Block
	case level == 2:
		d.kind = KindL2Block
	default:
		return Descriptor{}
	}
	return d
}

// Kind returns the variant held by the descriptor.
func (d Descriptor) Kind() DescriptorKind { return d.kind }

// Raw returns the hardware encoding.
func (d Descriptor) Raw() uint64 { return d.raw }

// Valid returns true for every variant except Invalid.
func (d Descriptor) Valid() bool { return d.kind != KindInvalid }

// complete returns true once both the address and the attributes are set.
func (d Descriptor) complete() bool { return d.addrSet && d.attrSet }

// ValidAt reports whether the variant may be stored in a table of the given
// level.
func (d Descriptor) ValidAt(level uint8) bool {
	switch d.kind {
	case KindInvalid:
		return level >= 1 && level <= 3
	case KindL1Block:
		return level == 1
	case KindL2Block:
		return level == 2
	case KindTable:
		return level == 1 || level == 2
	default:
		return level == 3
	}
}

func (d *Descriptor) become(kind DescriptorKind, raw uint64) *kernel.Error {
	if d.kind != KindInvalid {
		return mm.ErrInvalid
	}
	*d = Descriptor{kind: kind, raw: raw}
	return nil
}

// SetL1Block turns an Invalid descriptor into a 1G block entry.
func (d *Descriptor) SetL1Block() *kernel.Error { return d.become(KindL1Block, validBit) }

// SetL2Block turns an Invalid descriptor into a 2M block entry.
func (d *Descriptor) SetL2Block() *kernel.Error { return d.become(KindL2Block, validBit) }

// SetTable turns an Invalid descriptor into a next-level table entry.
func (d *Descriptor) SetTable() *kernel.Error { return d.become(KindTable, validBit|typeBit) }

// SetPage turns an Invalid descriptor into a level 3 page entry.
func (d *Descriptor) SetPage() *kernel.Error { return d.become(KindPage, validBit|typeBit) }

// AsPage reinterprets a Table entry as a Page entry pointing at the same
// frame. It is used to build the recursive slot; the attributes must be
// installed again afterwards.
func (d *Descriptor) AsPage() *kernel.Error {
	if d.kind != KindTable {
		return mm.ErrInvalid
	}

	d.kind = KindPage
	d.raw &^= tableOnlyMask | attrMask
	d.attrSet = false
	return nil
}

// Reset returns the descriptor to the Invalid state.
func (d *Descriptor) Reset() { *d = Descriptor{} }

func (d Descriptor) addrMask() uint64 {
	switch d.kind {
	case KindL1Block:
		return l1BlockAddrMask
	case KindL2Block:
		return l2BlockAddrMask
	case KindTable, KindPage:
		return pageAddrMask
	default:
		return 0
	}
}

// SetAddress installs the output address. It fails with ErrAlign unless pa
// is aligned to the granule of the variant (1G, 2M or 4K) and with ErrInvalid
// if the descriptor is Invalid or already carries an address. On failure the
// encoding is left untouched.
func (d *Descriptor) SetAddress(pa mm.PhysicalAddress) *kernel.Error {
	if d.kind == KindInvalid || d.addrSet {
		return mm.ErrInvalid
	}
	if uint64(pa) > mm.MaxPhysicalAddress {
		return mm.ErrOverflow
	}

	mask := d.addrMask()
	if uint64(pa)&^mask != 0 {
		return mm.ErrAlign
	}

	d.raw |= uint64(pa)
	d.addrSet = true
	return nil
}

// Address returns the output address held by the descriptor.
func (d Descriptor) Address() mm.PhysicalAddress {
	return mm.PhysicalAddress(d.raw & d.addrMask())
}

// SetAttributes installs the attribute profile for mt. Table entries only
// accept Table and block or page entries accept the six concrete profiles;
// anything else, or a second call, fails with ErrInvalid.
func (d *Descriptor) SetAttributes(mt MemoryType) *kernel.Error {
	switch {
	case d.kind == KindInvalid || d.attrSet:
		return mm.ErrInvalid
	case mt == Invalid || mt > Table:
		return mm.ErrInvalid
	case (d.kind == KindTable) != (mt == Table):
		return mm.ErrInvalid
	}

	d.raw = d.raw&^attrMask | attrPatterns[mt]
	d.attrSet = true
	return nil
}

// Attributes decodes the attribute bits back into a MemoryType. Unknown
// patterns decode to Invalid.
func (d Descriptor) Attributes() MemoryType {
	switch d.kind {
	case KindInvalid:
		return Invalid
	case KindTable:
		return Table
	default:
		return decodeAttributes(d.raw)
	}
}

// AttrIndx returns the MAIR slot selected by the entry.
func (d Descriptor) AttrIndx() uint8 { return uint8((d.raw & attrIndxMask) >> attrIndxShift) }

// NS returns the non-secure bit.
func (d Descriptor) NS() bool { return d.raw&nsBit != 0 }

// AP returns the two access permission bits.
func (d Descriptor) AP() uint8 { return uint8((d.raw & apMask) >> apShift) }

// SH returns the shareability field.
func (d Descriptor) SH() uint8 { return uint8((d.raw & shMask) >> shShift) }

// AF returns the access flag.
func (d Descriptor) AF() bool { return d.raw&afBit != 0 }

// NotGlobal returns the nG bit.
func (d Descriptor) NotGlobal() bool { return d.raw&nGBit != 0 }

// Contiguous returns the contiguous hint.
func (d Descriptor) Contiguous() bool { return d.raw&contiguousBit != 0 }

// PXN returns true if EL1 may not execute from the mapped memory.
func (d Descriptor) PXN() bool { return d.raw&pxnBit != 0 }

// UXN returns true if EL0 may not execute from the mapped memory.
func (d Descriptor) UXN() bool { return d.raw&uxnBit != 0 }

// PXNTable returns the hierarchical PXN limit of a Table entry.
func (d Descriptor) PXNTable() bool { return d.kind == KindTable && d.raw&pxnTableBit != 0 }

// UXNTable returns the hierarchical UXN limit of a Table entry.
func (d Descriptor) UXNTable() bool { return d.kind == KindTable && d.raw&uxnTableBit != 0 }

// APTable returns the hierarchical access permission limit of a Table entry.
func (d Descriptor) APTable() uint8 {
	if d.kind != KindTable {
		return 0
	}
	return uint8((d.raw & apTableMask) >> apTableShift)
}

// NSTable returns the hierarchical non-secure bit of a Table entry.
func (d Descriptor) NSTable() bool { return d.kind == KindTable && d.raw&nsTableBit != 0 }
