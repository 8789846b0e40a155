package vmm

import (
	"pios/kernel"
	"pios/kernel/mm"
	"unsafe"
)

var (
	// entryPtrFn is used by tests to redirect descriptor accesses to a
	// simulated address space. When compiling the kernel this function
	// will be automatically inlined.
	entryPtrFn = func(entryAddr mm.VirtualAddress) *uint64 {
		return (*uint64)(unsafe.Pointer(uintptr(entryAddr)))
	}

	// memclrFn is used by tests to override calls to kernel.Memset.
	memclrFn = func(start mm.VirtualAddress, size mm.Size) {
		kernel.Memset(uintptr(start), 0, uintptr(size))
	}
)

// TranslationTable is a view over the 512 descriptors of one table level,
// accessed through the virtual address at which the table is mapped.
type TranslationTable struct {
	base  mm.VirtualAddress
	level uint8
}

// NewTranslationTable returns a view of the table mapped at base. It fails
// with ErrOverflow for levels outside 1-3 and with ErrAlign if base is not
// page aligned.
func NewTranslationTable(base mm.VirtualAddress, level uint8) (TranslationTable, *kernel.Error) {
	if level < 1 || level > 3 {
		return TranslationTable{}, mm.ErrOverflow
	}
	if !base.Is4KAligned() {
		return TranslationTable{}, mm.ErrAlign
	}
	return TranslationTable{base: base, level: level}, nil
}

// Level returns the translation level of the table.
func (t TranslationTable) Level() uint8 { return t.level }

// Base returns the virtual address of the first descriptor.
func (t TranslationTable) Base() mm.VirtualAddress { return t.base }

func (t TranslationTable) slot(index uint64) *uint64 {
	return entryPtrFn(t.base + mm.VirtualAddress(index<<mm.PointerShift))
}

// Entry decodes the descriptor stored at index.
func (t TranslationTable) Entry(index uint64) (Descriptor, *kernel.Error) {
	if index >= mm.TableEntries {
		return Descriptor{}, mm.ErrOverflow
	}
	return DecodeDescriptor(t.level, *t.slot(index)), nil
}

// SetEntry stores d at index. The descriptor must be fully populated and of
// a variant legal for the table level: blocks and tables at levels 1 and 2,
// pages at level 3.
func (t TranslationTable) SetEntry(index uint64, d Descriptor) *kernel.Error {
	switch {
	case index >= mm.TableEntries:
		return mm.ErrOverflow
	case !d.Valid() || !d.ValidAt(t.level) || !d.complete():
		return mm.ErrInvalid
	}

	*t.slot(index) = d.raw
	return nil
}

// ClearEntry resets the descriptor at index to Invalid.
func (t TranslationTable) ClearEntry(index uint64) *kernel.Error {
	if index >= mm.TableEntries {
		return mm.ErrOverflow
	}
	*t.slot(index) = 0
	return nil
}

// Zero invalidates every descriptor in the table.
func (t TranslationTable) Zero() {
	memclrFn(t.base, mm.PageSize)
}

// setRecursive points the last slot of a level 1 table at the table's own
// frame so that the table shows up as an ordinary page in the recursive
// window.
func (t TranslationTable) setRecursive(self mm.PhysicalAddress) *kernel.Error {
	if t.level != 1 {
		return mm.ErrInvalid
	}

	var d Descriptor
	if err := d.SetTable(); err != nil {
		return err
	}
	if err := d.SetAddress(self); err != nil {
		return err
	}
	if err := d.SetAttributes(Table); err != nil {
		return err
	}
	if err := d.AsPage(); err != nil {
		return err
	}
	if err := d.SetAttributes(RWNormal); err != nil {
		return err
	}

	*t.slot(mm.RecursiveIndex) = d.raw
	return nil
}
