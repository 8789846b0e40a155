package main

import (
	"encoding/binary"
	"pios/kernel/mm"
	"pios/kernel/mm/vmm"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slices"
)

// physMemory is a snapshot of physical memory starting at base.
type physMemory struct {
	base mm.PhysicalAddress
	data []byte
}

func (m physMemory) word(pa mm.PhysicalAddress) (uint64, error) {
	if pa < m.base || uint64(pa-m.base)+8 > uint64(len(m.data)) {
		return 0, errors.Newf("physical address 0x%x is outside the dump", uint64(pa))
	}
	off := uint64(pa - m.base)
	return binary.LittleEndian.Uint64(m.data[off : off+8]), nil
}

// mapping is a run of virtual memory translated to contiguous physical
// memory with the same attributes.
type mapping struct {
	va   mm.VirtualAddress
	pa   mm.PhysicalAddress
	size mm.Size
	mt   vmm.MemoryType
	kind vmm.DescriptorKind
}

func (m mapping) end() mm.VirtualAddress { return m.va + mm.VirtualAddress(m.size) }

var levelShifts = [...]uint{1: mm.Level1Shift, 2: mm.Level2Shift, 3: mm.Level3Shift}

// walkRoot decodes every leaf entry reachable from the root table at root.
// The recursive slot of the root is skipped.
func walkRoot(mem physMemory, root mm.PhysicalAddress, higher bool) ([]mapping, error) {
	var base mm.VirtualAddress
	if higher {
		base = mm.HigherHalfBase
	}

	var mappings []mapping
	if err := walkTable(mem, root, 1, base, &mappings); err != nil {
		return nil, err
	}

	slices.SortFunc(mappings, func(a, b mapping) int {
		switch {
		case a.va < b.va:
			return -1
		case a.va > b.va:
			return 1
		default:
			return 0
		}
	})
	return mappings, nil
}

func walkTable(mem physMemory, table mm.PhysicalAddress, level uint8, base mm.VirtualAddress, out *[]mapping) error {
	for index := uint64(0); index < mm.TableEntries; index++ {
		if level == 1 && index == mm.RecursiveIndex {
			continue
		}

		raw, err := mem.word(table + mm.PhysicalAddress(index<<mm.PointerShift))
		if err != nil {
			return errors.Wrapf(err, "level %d table at 0x%x", level, uint64(table))
		}

		d := vmm.DecodeDescriptor(level, raw)
		va := base | mm.VirtualAddress(index<<levelShifts[level])
		switch d.Kind() {
		case vmm.KindInvalid:
		case vmm.KindTable:
			if err = walkTable(mem, d.Address(), level+1, va, out); err != nil {
				return err
			}
		default:
			*out = append(*out, mapping{
				va:   va,
				pa:   d.Address(),
				size: mm.Size(1) << levelShifts[level],
				mt:   d.Attributes(),
				kind: d.Kind(),
			})
		}
	}
	return nil
}

// coalesce merges neighbouring mappings that are contiguous in both address
// spaces and share kind and memory type. mappings must be sorted.
func coalesce(mappings []mapping) []mapping {
	var out []mapping
	for _, m := range mappings {
		if n := len(out); n > 0 {
			last := &out[n-1]
			if last.end() == m.va && last.pa+mm.PhysicalAddress(last.size) == m.pa && last.mt == m.mt && last.kind == m.kind {
				last.size += m.size
				continue
			}
		}
		out = append(out, m)
	}
	return out
}
