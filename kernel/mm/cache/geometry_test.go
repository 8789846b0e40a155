package cache

import (
	"pios/kernel/cpu"
	"testing"
)

func mockIDRegisters(clidr, ctr uint64, ccsidr map[uint64]uint64) func() {
	origCLIDR, origCTR, origCCSIDR := clidrReg, ctrReg, readCCSIDRFn

	clidrReg = cpu.NewSysReg("CLIDR_EL1", func() uint64 { return clidr }, nil)
	ctrReg = cpu.NewSysReg("CTR_EL0", func() uint64 { return ctr }, nil)
	readCCSIDRFn = func(csselr uint64) uint64 { return ccsidr[csselr] }

	return func() {
		clidrReg, ctrReg, readCCSIDRFn = origCLIDR, origCTR, origCCSIDR
	}
}

func TestNewGeometry(t *testing.T) {
	// L1: separate I/D, L2: unified; LoUIS = 1, LoC = 2, LoUU = 1
	clidr := uint64(3|4<<3) | 1<<21 | 2<<24 | 1<<27
	// IminLine = 32 bytes, DminLine = 64 bytes
	ctr := uint64(3 | 4<<16)
	ccsidr := map[uint64]uint64{
		0: 2 | 3<<3 | 127<<13,  // L1 D: 64B lines, 4 ways, 128 sets
		1: 1 | 1<<3 | 255<<13,  // L1 I: 32B lines, 2 ways, 256 sets
		2: 2 | 15<<3 | 511<<13, // L2: 64B lines, 16 ways, 512 sets
	}
	defer mockIDRegisters(clidr, ctr, ccsidr)()

	g := NewGeometry()

	if g.NumLevels != 2 {
		t.Fatalf("expected 2 cache levels; got %d", g.NumLevels)
	}
	if g.LoUIS != 1 || g.LoC != 2 || g.LoUU != 1 {
		t.Errorf("unexpected LoUIS/LoC/LoUU: %d/%d/%d", g.LoUIS, g.LoC, g.LoUU)
	}
	if g.IMinLine != 32 || g.DMinLine != 64 {
		t.Errorf("expected min lines I=32, D=64; got I=%d, D=%d", g.IMinLine, g.DMinLine)
	}

	specs := []struct {
		level   int
		expType Type
		expI    SetWay
		expD    SetWay
	}{
		{0, Separate, SetWay{Sets: 256, Ways: 2, LineSize: 32}, SetWay{Sets: 128, Ways: 4, LineSize: 64}},
		{1, Unified, SetWay{}, SetWay{Sets: 512, Ways: 16, LineSize: 64}},
		{2, NoCache, SetWay{}, SetWay{}},
	}

	for specIndex, spec := range specs {
		lvl := g.Levels[spec.level]
		if lvl.Type != spec.expType {
			t.Errorf("[spec %d] expected type %s; got %s", specIndex, spec.expType, lvl.Type)
		}
		if lvl.Instruction != spec.expI {
			t.Errorf("[spec %d] expected I geometry %+v; got %+v", specIndex, spec.expI, lvl.Instruction)
		}
		if lvl.Data != spec.expD {
			t.Errorf("[spec %d] expected D geometry %+v; got %+v", specIndex, spec.expD, lvl.Data)
		}
	}

	if exp, got := uint64(32*1024), g.Levels[0].Data.Size(); got != exp {
		t.Errorf("expected L1 D size %d; got %d", exp, got)
	}
}

func TestTypeString(t *testing.T) {
	specs := map[Type]string{
		NoCache:         "none",
		InstructionOnly: "instruction",
		DataOnly:        "data",
		Separate:        "separate",
		Unified:         "unified",
		Type(7):         "reserved",
	}

	for typ, exp := range specs {
		if got := typ.String(); got != exp {
			t.Errorf("expected %d to be reported as %q; got %q", typ, exp, got)
		}
	}
}
