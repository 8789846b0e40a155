// Package cache provides cache identification and the data/instruction cache
// and TLB maintenance sequences needed when translation tables, DMA buffers
// or executable code change.
package cache

import "pios/kernel/cpu"

// MaxLevels is the number of cache levels CLIDR_EL1 can describe.
const MaxLevels = 7

// Type describes what a cache level implements (CLIDR_EL1.Ctype<n>).
type Type uint8

// The supported cache types.
const (
	NoCache Type = iota
	InstructionOnly
	DataOnly
	Separate
	Unified
)

// String implements fmt.Stringer for Type.
func (t Type) String() string {
	switch t {
	case NoCache:
		return "none"
	case InstructionOnly:
		return "instruction"
	case DataOnly:
		return "data"
	case Separate:
		return "separate"
	case Unified:
		return "unified"
	default:
		return "reserved"
	}
}

// SetWay describes the organization of one cache.
type SetWay struct {
	Sets     uint32
	Ways     uint32
	LineSize uint32
}

// Size returns the total capacity of the cache in bytes.
func (sw SetWay) Size() uint64 {
	return uint64(sw.Sets) * uint64(sw.Ways) * uint64(sw.LineSize)
}

// Level holds the geometry of one cache level. Data also describes unified
// caches; Instruction is only populated for separate or instruction caches.
type Level struct {
	Type        Type
	Instruction SetWay
	Data        SetWay
}

// Geometry is a snapshot of the cache topology of the executing core.
type Geometry struct {
	Levels    [MaxLevels]Level
	NumLevels uint8

	// Levels of coherency and unification (1-based; 0 means no
	// maintenance is needed to reach the point).
	LoC   uint8
	LoUU  uint8
	LoUIS uint8

	// Smallest line sizes, in bytes, of all data and instruction caches.
	IMinLine uint32
	DMinLine uint32
}

var (
	// clidrReg, ctrReg and readCCSIDRFn are mocked by tests.
	clidrReg     = cpu.CLIDR
	ctrReg       = cpu.CTR
	readCCSIDRFn = cpu.ReadCCSIDR
)

const (
	clidrCtypeBits  = 3
	clidrCtypeMask  = 1<<clidrCtypeBits - 1
	clidrLoUISShift = 21
	clidrLoCShift   = 24
	clidrLoUUShift  = 27

	ccsidrLineSizeMask = 0x7
	ccsidrAssocShift   = 3
	ccsidrAssocMask    = 0x3ff
	ccsidrSetsShift    = 13
	ccsidrSetsMask     = 0x7fff

	ctrIMinLineMask  = 0xf
	ctrDMinLineShift = 16
	ctrDMinLineMask  = 0xf
)

// NewGeometry probes the cache identification registers. It only reads
// state and may be called at any time.
func NewGeometry() Geometry {
	var (
		g     Geometry
		clidr = clidrReg.Get()
		ctr   = ctrReg.Get()
	)

	g.LoUIS = uint8(clidr>>clidrLoUISShift) & 0x7
	g.LoC = uint8(clidr>>clidrLoCShift) & 0x7
	g.LoUU = uint8(clidr>>clidrLoUUShift) & 0x7
	g.IMinLine = 4 << (ctr & ctrIMinLineMask)
	g.DMinLine = 4 << ((ctr >> ctrDMinLineShift) & ctrDMinLineMask)

	for level := uint8(0); level < MaxLevels; level++ {
		t := Type((clidr >> (level * clidrCtypeBits)) & clidrCtypeMask)
		if t == NoCache {
			break
		}

		g.Levels[level].Type = t
		switch t {
		case InstructionOnly:
			g.Levels[level].Instruction = probe(level, true)
		case Separate:
			g.Levels[level].Instruction = probe(level, true)
			g.Levels[level].Data = probe(level, false)
		default:
			g.Levels[level].Data = probe(level, false)
		}
		g.NumLevels++
	}

	return g
}

// probe selects the cache at the given 0-based level through CSSELR_EL1 and
// decodes its CCSIDR_EL1.
func probe(level uint8, instruction bool) SetWay {
	csselr := uint64(level) << 1
	if instruction {
		csselr |= 1
	}

	ccsidr := readCCSIDRFn(csselr)
	return SetWay{
		LineSize: 1 << ((ccsidr & ccsidrLineSizeMask) + 4),
		Ways:     uint32((ccsidr>>ccsidrAssocShift)&ccsidrAssocMask) + 1,
		Sets:     uint32((ccsidr>>ccsidrSetsShift)&ccsidrSetsMask) + 1,
	}
}
