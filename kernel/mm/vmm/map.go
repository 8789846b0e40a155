package vmm

import (
	"pios/kernel"
	"pios/kernel/kfmt"
	"pios/kernel/mm"
)

// levelFor returns the translation level whose entries map blocks of size.
func levelFor(size mm.Size) (uint8, *kernel.Error) {
	switch size {
	case mm.Block4K:
		return 3, nil
	case mm.Block2M:
		return 2, nil
	case mm.Block1G:
		return 1, nil
	default:
		return 0, mm.ErrUnsupported
	}
}

// checkTarget validates a virtual address and block size pair.
func checkTarget(va mm.VirtualAddress, size mm.Size) (uint8, *kernel.Error) {
	level, err := levelFor(size)
	if err != nil {
		return 0, err
	}
	if mm.AlignDown(va, size) != va {
		return 0, mm.ErrAlign
	}
	if !canonical(va) {
		return 0, mm.ErrOverflow
	}
	if inWindow(va) {
		return 0, mm.ErrInvalid
	}
	return level, nil
}

// Map installs a translation from the block of the given size at va to the
// block at pa. Size must be mm.Block4K, mm.Block2M or mm.Block1G and both
// addresses must be aligned to it. Missing intermediate tables are backed by
// frames obtained from the registered frame allocator and cleared through
// the recursive window. Map fails with ErrInvalid if va is already mapped or
// a block entry covers it.
func (m *MemoryManagementUnit) Map(va mm.VirtualAddress, pa mm.PhysicalAddress, mt MemoryType, size mm.Size) *kernel.Error {
	level, err := checkTarget(va, size)
	if err != nil {
		return err
	}
	if mm.AlignDown(pa, size) != pa {
		return mm.ErrAlign
	}
	if uint64(pa) > mm.MaxPhysicalAddress {
		return mm.ErrOverflow
	}
	if mt == Invalid || mt == Table {
		return mm.ErrInvalid
	}

	root := m.rootFor(va)
	for {
		root.lock.Acquire()
		missing, err := root.install(va, pa, mt, level)
		root.lock.Release()
		if err != nil {
			return err
		}
		if missing == 0 {
			break
		}

		// Table frames are fetched without holding the root lock.
		frame, err := allocFrameFn()
		if err != nil {
			return err
		}

		root.lock.Acquire()
		used, err := root.attachTable(va, missing, frame)
		root.lock.Release()
		if !used {
			if ferr := freeFrameFn(frame); ferr != nil {
				kfmt.Printf("[vmm] lost table frame 0x%x: %s\n", uint64(frame.Address()), ferr.Message)
			}
		}
		if err != nil {
			return err
		}
	}

	tlbInvalidateVAFn(va)
	return nil
}

// install walks towards the entry mapping va at the given level and writes
// it. If an intermediate table is missing, the level holding the invalid
// entry is returned instead.
func (r *RootTable) install(va mm.VirtualAddress, pa mm.PhysicalAddress, mt MemoryType, level uint8) (uint8, *kernel.Error) {
	for lvl := uint8(1); lvl < level; lvl++ {
		entry, err := tableFor(va, lvl).Entry(va.Index(lvl))
		if err != nil {
			return 0, err
		}

		switch entry.Kind() {
		case KindTable:
		case KindInvalid:
			return lvl, nil
		default:
			return 0, mm.ErrInvalid
		}
	}

	table := tableFor(va, level)
	index := va.Index(level)
	if cur, err := table.Entry(index); err != nil {
		return 0, err
	} else if cur.Valid() {
		return 0, mm.ErrInvalid
	}

	var (
		d   Descriptor
		err *kernel.Error
	)
	switch level {
	case 1:
		err = d.SetL1Block()
	case 2:
		err = d.SetL2Block()
	default:
		err = d.SetPage()
	}
	if err != nil {
		return 0, err
	}
	if err = d.SetAddress(pa); err != nil {
		return 0, err
	}
	if err = d.SetAttributes(mt); err != nil {
		return 0, err
	}
	return 0, table.SetEntry(index, d)
}

// attachTable links frame as the next-level table below the entry for va at
// the given level, unless another core installed one in the meantime. The
// new table is cleared through the recursive window.
func (r *RootTable) attachTable(va mm.VirtualAddress, level uint8, frame mm.Frame) (bool, *kernel.Error) {
	table := tableFor(va, level)
	index := va.Index(level)
	if cur, err := table.Entry(index); err != nil || cur.Valid() {
		return false, err
	}

	var d Descriptor
	if err := d.SetTable(); err != nil {
		return false, err
	}
	if err := d.SetAddress(frame.Address()); err != nil {
		return false, err
	}
	if err := d.SetAttributes(Table); err != nil {
		return false, err
	}
	if err := table.SetEntry(index, d); err != nil {
		return false, err
	}

	dsbFn()
	isbFn()
	tableFor(va, level+1).Zero()
	dsbFn()
	return true, nil
}

// Unmap removes the translation for the block of the given size at va and
// invalidates it in the TLB. It fails with ErrInvalid unless va is mapped by
// an entry of exactly that size.
func (m *MemoryManagementUnit) Unmap(va mm.VirtualAddress, size mm.Size) *kernel.Error {
	level, err := checkTarget(va, size)
	if err != nil {
		return err
	}

	root := m.rootFor(va)
	root.lock.Acquire()
	err = root.remove(va, level)
	root.lock.Release()
	if err != nil {
		return err
	}

	tlbInvalidateVAFn(va)
	return nil
}

func (r *RootTable) remove(va mm.VirtualAddress, level uint8) *kernel.Error {
	for lvl := uint8(1); lvl < level; lvl++ {
		entry, err := tableFor(va, lvl).Entry(va.Index(lvl))
		if err != nil {
			return err
		}
		if entry.Kind() != KindTable {
			return mm.ErrInvalid
		}
	}

	table := tableFor(va, level)
	index := va.Index(level)
	entry, err := table.Entry(index)
	if err != nil {
		return err
	}

	expKind := [...]DescriptorKind{1: KindL1Block, 2: KindL2Block, 3: KindPage}[level]
	if entry.Kind() != expKind {
		return mm.ErrInvalid
	}
	return table.ClearEntry(index)
}
