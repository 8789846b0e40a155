package vmm

// MemoryType selects one of the fixed attribute profiles that can be
// installed in a descriptor.
type MemoryType uint8

// The supported memory types.
const (
	// Invalid is reported for attribute patterns that match no profile.
	Invalid MemoryType = iota

	// RWNormal is read/write, non-executable, write-back cacheable memory.
	RWNormal

	// RONormal is read-only, non-executable, write-back cacheable memory.
	RONormal

	// XNormal is read-only memory that EL1 may execute.
	XNormal

	// RWXNormal is read/write memory that EL1 may execute.
	RWXNormal

	// RWDevice is read/write Device-nGnRnE memory.
	RWDevice

	// RODevice is read-only Device-nGnRnE memory.
	RODevice

	// Table marks descriptors that point to a next-level table.
	Table
)

var memoryTypeNames = [...]string{
	Invalid:   "invalid",
	RWNormal:  "rw-normal",
	RONormal:  "ro-normal",
	XNormal:   "x-normal",
	RWXNormal: "rwx-normal",
	RWDevice:  "rw-device",
	RODevice:  "ro-device",
	Table:     "table",
}

// String implements fmt.Stringer for MemoryType.
func (mt MemoryType) String() string {
	if int(mt) >= len(memoryTypeNames) {
		return memoryTypeNames[Invalid]
	}
	return memoryTypeNames[mt]
}

// Writable returns true if EL1 may store to memory mapped with this type.
func (mt MemoryType) Writable() bool {
	return mt == RWNormal || mt == RWXNormal || mt == RWDevice
}

const (
	// MAIRNormal and MAIRDevice are the MAIR_EL1 slots referenced by the
	// AttrIndx field.
	MAIRNormal = 0
	MAIRDevice = 1

	// MAIRValue is the MAIR_EL1 setting matching the slots above: slot 0
	// holds Normal inner/outer write-back non-transient memory and slot 1
	// holds Device-nGnRnE memory.
	MAIRValue = 0xff | 0x00<<8

	apReadWrite = 0 << apShift
	apReadOnly  = 2 << apShift
	shInner     = 3 << shShift

	normalAttrs = MAIRNormal<<attrIndxShift | shInner | afBit
	deviceAttrs = MAIRDevice<<attrIndxShift | afBit
	noExec      = pxnBit | uxnBit

	// attrMask covers every bit that takes part in a profile.
	attrMask = attrIndxMask | nsBit | apMask | shMask | afBit | nGBit | contiguousBit | pxnBit | uxnBit
)

// attrPatterns maps each profile to its attribute bits. Table descriptors
// carry the RWNormal pattern: the walker ignores these bits at table level
// but they take effect when the recursive window reads the entry as a page.
var attrPatterns = [...]uint64{
	RWNormal:  normalAttrs | apReadWrite | noExec,
	RONormal:  normalAttrs | apReadOnly | noExec,
	XNormal:   normalAttrs | apReadOnly | uxnBit,
	RWXNormal: normalAttrs | apReadWrite | uxnBit,
	RWDevice:  deviceAttrs | apReadWrite | noExec,
	RODevice:  deviceAttrs | apReadOnly | noExec,
	Table:     normalAttrs | apReadWrite | noExec,
}

// decodeAttributes matches the attribute bits of a block or page entry
// against the known profiles.
func decodeAttributes(raw uint64) MemoryType {
	bits := raw & attrMask
	for mt := RWNormal; mt <= RODevice; mt++ {
		if attrPatterns[mt] == bits {
			return mt
		}
	}
	return Invalid
}
