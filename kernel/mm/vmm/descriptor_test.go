package vmm

import (
	"pios/kernel"
	"pios/kernel/mm"
	"testing"
)

var concreteTypes = []MemoryType{RWNormal, RONormal, XNormal, RWXNormal, RWDevice, RODevice}

func TestDescriptorProfilesRoundTrip(t *testing.T) {
	ctors := map[string]func(*Descriptor) *kernel.Error{
		"l1-block": (*Descriptor).SetL1Block,
		"l2-block": (*Descriptor).SetL2Block,
		"page":     (*Descriptor).SetPage,
	}

	for name, ctor := range ctors {
		for _, mt := range concreteTypes {
			var d Descriptor
			if err := ctor(&d); err != nil {
				t.Fatalf("[%s] %v", name, err)
			}
			if err := d.SetAttributes(mt); err != nil {
				t.Fatalf("[%s] SetAttributes(%s): %v", name, mt, err)
			}
			if got := d.Attributes(); got != mt {
				t.Errorf("[%s] expected attributes %s; got %s", name, mt, got)
			}
			if d.Raw()&validBit == 0 {
				t.Errorf("[%s] expected the valid bit to be set", name)
			}
		}
	}
}

func TestDescriptorConstructorsRequireInvalid(t *testing.T) {
	var d Descriptor
	if err := d.SetL1Block(); err != nil {
		t.Fatal(err)
	}
	if err := d.SetL1Block(); err != mm.ErrInvalid {
		t.Fatalf("expected a second SetL1Block to fail with ErrInvalid; got %v", err)
	}
	for _, ctor := range []func(*Descriptor) *kernel.Error{
		(*Descriptor).SetL2Block,
		(*Descriptor).SetTable,
		(*Descriptor).SetPage,
	} {
		if err := ctor(&d); err != mm.ErrInvalid {
			t.Fatalf("expected re-typing a populated descriptor to fail with ErrInvalid; got %v", err)
		}
	}

	d.Reset()
	if d.Kind() != KindInvalid || d.Raw() != 0 || d.Valid() {
		t.Fatal("expected Reset to return the descriptor to Invalid")
	}
	if err := d.SetTable(); err != nil {
		t.Fatalf("expected a reset descriptor to accept a new variant; got %v", err)
	}
}

func TestDescriptorSetAddress(t *testing.T) {
	var d Descriptor
	if err := d.SetAddress(0x200000); err != mm.ErrInvalid {
		t.Fatalf("expected ErrInvalid on an Invalid descriptor; got %v", err)
	}

	if err := d.SetL2Block(); err != nil {
		t.Fatal(err)
	}

	before := d.Raw()
	if err := d.SetAddress(0x201000); err != mm.ErrAlign {
		t.Fatalf("expected ErrAlign; got %v", err)
	}
	if d.Raw() != before {
		t.Fatalf("expected a failed SetAddress to leave the encoding untouched; got %x", d.Raw())
	}

	pa := mm.PhysicalAddress(0x3_c020_0000)
	if err := d.SetAddress(pa); err != nil {
		t.Fatal(err)
	}
	if got := d.Address(); got != pa {
		t.Fatalf("expected address %x; got %x", pa, got)
	}
	if err := d.SetAddress(0x400000); err != mm.ErrInvalid {
		t.Fatalf("expected a second SetAddress to fail with ErrInvalid; got %v", err)
	}

	specs := []struct {
		ctor   func(*Descriptor) *kernel.Error
		pa     mm.PhysicalAddress
		expErr *kernel.Error
	}{
		{(*Descriptor).SetL1Block, 0x4000_0000, nil},
		{(*Descriptor).SetL1Block, 0x0020_0000, mm.ErrAlign},
		{(*Descriptor).SetTable, 0x1000, nil},
		{(*Descriptor).SetTable, 0x1800, mm.ErrAlign},
		{(*Descriptor).SetPage, 0xffff_ffff_f000, nil},
		{(*Descriptor).SetPage, 1 << 48, mm.ErrOverflow},
	}

	for specIndex, spec := range specs {
		var d Descriptor
		if err := spec.ctor(&d); err != nil {
			t.Fatal(err)
		}

		err := d.SetAddress(spec.pa)
		if spec.expErr == nil {
			if err != nil || d.Address() != spec.pa {
				t.Errorf("[spec %d] expected address %x; got %x, %v", specIndex, spec.pa, d.Address(), err)
			}
			continue
		}
		if err != spec.expErr {
			t.Errorf("[spec %d] expected error %v; got %v", specIndex, spec.expErr, err)
		}
	}
}

func TestDescriptorSetAttributes(t *testing.T) {
	var d Descriptor
	if err := d.SetAttributes(RWNormal); err != mm.ErrInvalid {
		t.Fatalf("expected ErrInvalid on an Invalid descriptor; got %v", err)
	}

	if err := d.SetPage(); err != nil {
		t.Fatal(err)
	}
	for _, mt := range []MemoryType{Invalid, Table, MemoryType(42)} {
		if err := d.SetAttributes(mt); err != mm.ErrInvalid {
			t.Errorf("expected SetAttributes(%d) on a page to fail; got %v", mt, err)
		}
	}

	if err := d.SetAttributes(RWDevice); err != nil {
		t.Fatal(err)
	}
	if err := d.SetAttributes(RWNormal); err != mm.ErrInvalid {
		t.Fatalf("expected a second SetAttributes to fail with ErrInvalid; got %v", err)
	}

	if d.AttrIndx() != MAIRDevice || d.AP() != 0 || d.SH() != 0 || !d.AF() || !d.PXN() || !d.UXN() {
		t.Errorf("unexpected RWDevice fields in %x", d.Raw())
	}
	if d.NS() || d.NotGlobal() || d.Contiguous() {
		t.Errorf("expected NS, nG and Contiguous to be clear in %x", d.Raw())
	}
	if d.PXNTable() || d.UXNTable() || d.APTable() != 0 || d.NSTable() {
		t.Error("expected table-only fields to read as clear on a page")
	}

	var table Descriptor
	if err := table.SetTable(); err != nil {
		t.Fatal(err)
	}
	if err := table.SetAttributes(RWNormal); err != mm.ErrInvalid {
		t.Fatalf("expected a table to reject RWNormal; got %v", err)
	}
	if err := table.SetAttributes(Table); err != nil {
		t.Fatal(err)
	}
	if table.Attributes() != Table {
		t.Fatalf("expected Table attributes; got %s", table.Attributes())
	}
}

func TestDescriptorFieldProfiles(t *testing.T) {
	specs := []struct {
		mt       MemoryType
		attrIndx uint8
		ap       uint8
		sh       uint8
		pxn      bool
	}{
		{RWNormal, MAIRNormal, 0, 3, true},
		{RONormal, MAIRNormal, 2, 3, true},
		{XNormal, MAIRNormal, 2, 3, false},
		{RWXNormal, MAIRNormal, 0, 3, false},
		{RWDevice, MAIRDevice, 0, 0, true},
		{RODevice, MAIRDevice, 2, 0, true},
	}

	for specIndex, spec := range specs {
		var d Descriptor
		_ = d.SetPage()
		_ = d.SetAttributes(spec.mt)

		if d.AttrIndx() != spec.attrIndx || d.AP() != spec.ap || d.SH() != spec.sh || d.PXN() != spec.pxn {
			t.Errorf("[spec %d] unexpected encoding %x for %s", specIndex, d.Raw(), spec.mt)
		}
		if !d.AF() || !d.UXN() {
			t.Errorf("[spec %d] expected AF and UXN to be set for %s", specIndex, spec.mt)
		}
	}
}

func TestDescriptorAsPage(t *testing.T) {
	var d Descriptor
	if err := d.SetL2Block(); err != nil {
		t.Fatal(err)
	}
	if err := d.AsPage(); err != mm.ErrInvalid {
		t.Fatalf("expected AsPage on a block to fail; got %v", err)
	}

	d.Reset()
	_ = d.SetTable()
	_ = d.SetAddress(0x8_0000)
	_ = d.SetAttributes(Table)
	if err := d.AsPage(); err != nil {
		t.Fatal(err)
	}
	if d.Kind() != KindPage || d.Address() != 0x8_0000 {
		t.Fatalf("expected a page pointing at 0x80000; got %s at %x", d.Kind(), d.Address())
	}
	if err := d.SetAttributes(RWNormal); err != nil {
		t.Fatalf("expected the reinterpreted page to accept attributes; got %v", err)
	}
	if d.Attributes() != RWNormal {
		t.Fatalf("expected RWNormal; got %s", d.Attributes())
	}
}

func TestDecodeDescriptor(t *testing.T) {
	specs := []struct {
		level   uint8
		raw     uint64
		expKind DescriptorKind
		expAddr mm.PhysicalAddress
	}{
		{1, 0, KindInvalid, 0},
		{1, 0x4000_0000 | 0b01, KindL1Block, 0x4000_0000},
		{1, 0x1234_5000 | 0b11, KindTable, 0x1234_5000},
		{2, 0x0060_0000 | 0b01, KindL2Block, 0x0060_0000},
		{2, 0x5000 | 0b11, KindTable, 0x5000},
		{3, 0x7000 | 0b11, KindPage, 0x7000},
		{3, 0x7000 | 0b01, KindInvalid, 0},
		{3, 0x7000 | 0b10, KindInvalid, 0},
		{4, 0x7000 | 0b01, KindInvalid, 0},
	}

	for specIndex, spec := range specs {
		d := DecodeDescriptor(spec.level, spec.raw)
		if d.Kind() != spec.expKind || d.Address() != spec.expAddr {
			t.Errorf("[spec %d] expected %s at %x; got %s at %x", specIndex, spec.expKind, spec.expAddr, d.Kind(), d.Address())
		}
		if d.Valid() && d.Raw()&validBit == 0 {
			t.Errorf("[spec %d] valid descriptor without the valid bit", specIndex)
		}
	}

	table := DecodeDescriptor(1, 0x5000|0b11|pxnTableBit|uxnTableBit|2<<apTableShift|nsTableBit)
	if !table.PXNTable() || !table.UXNTable() || table.APTable() != 2 || !table.NSTable() {
		t.Errorf("unexpected table-only fields in %x", table.Raw())
	}

	if got := DecodeDescriptor(3, 0x7000|0b11|1<<2|1<<10).Attributes(); got != Invalid {
		t.Errorf("expected an unknown pattern to decode as Invalid; got %s", got)
	}
}

func TestDescriptorValidAt(t *testing.T) {
	specs := []struct {
		kind DescriptorKind
		exp  [4]bool
	}{
		{KindInvalid, [4]bool{false, true, true, true}},
		{KindL1Block, [4]bool{false, true, false, false}},
		{KindL2Block, [4]bool{false, false, true, false}},
		{KindTable, [4]bool{false, true, true, false}},
		{KindPage, [4]bool{false, false, false, true}},
	}

	for _, spec := range specs {
		d := Descriptor{kind: spec.kind}
		for level := uint8(0); level < 4; level++ {
			if got := d.ValidAt(level); got != spec.exp[level] {
				t.Errorf("expected %s.ValidAt(%d) to be %t", spec.kind, level, spec.exp[level])
			}
		}
	}
}

func TestMemoryTypeString(t *testing.T) {
	specs := map[MemoryType]string{
		Invalid:        "invalid",
		RWNormal:       "rw-normal",
		RODevice:       "ro-device",
		Table:          "table",
		MemoryType(99): "invalid",
	}
	for mt, exp := range specs {
		if got := mt.String(); got != exp {
			t.Errorf("expected %q; got %q", exp, got)
		}
	}

	for _, mt := range concreteTypes {
		exp := mt == RWNormal || mt == RWXNormal || mt == RWDevice
		if mt.Writable() != exp {
			t.Errorf("expected %s.Writable() to be %t", mt, exp)
		}
	}
}
