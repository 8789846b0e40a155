package vmm

import "pios/kernel/mm"

// Translate returns the physical address va is mapped to. The boolean result
// is false if any level of the walk holds an invalid entry.
func (m *MemoryManagementUnit) Translate(va mm.VirtualAddress) (mm.PhysicalAddress, bool) {
	if !canonical(va) {
		return 0, false
	}

	root := m.rootFor(va)
	root.lock.Acquire()
	defer root.lock.Release()

	for level := uint8(1); level <= 3; level++ {
		entry, err := tableFor(va, level).Entry(va.Index(level))
		if err != nil {
			return 0, false
		}

		var offsetMask uint64
		switch entry.Kind() {
		case KindTable:
			continue
		case KindL1Block:
			offsetMask = uint64(mm.GiantPageSize - 1)
		case KindL2Block:
			offsetMask = uint64(mm.HugePageSize - 1)
		case KindPage:
			offsetMask = uint64(mm.PageSize - 1)
		default:
			return 0, false
		}
		return entry.Address() | mm.PhysicalAddress(uint64(va)&offsetMask), true
	}

	return 0, false
}
