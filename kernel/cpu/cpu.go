// Package cpu exposes the AArch64 instructions and system registers used by
// the memory management code: barriers, cache and TLB maintenance, cache
// identification registers and the translation table base registers.
//
// On non-arm64 builds every primitive is a harmless stand-in so that packages
// depending on cpu can be unit tested on the development host; tests replace
// the primitives they care about through package-level function variables.
package cpu

// SysReg is a handle on a single system register. A SysReg is constructed once
// for a fixed register and is the only way the kernel reads or writes it.
type SysReg struct {
	name  string
	read  func() uint64
	write func(uint64)
}

// NewSysReg returns a SysReg backed by the supplied accessors. A nil write
// accessor makes the register read-only.
func NewSysReg(name string, read func() uint64, write func(uint64)) *SysReg {
	return &SysReg{name: name, read: read, write: write}
}

// Name returns the architectural register name.
func (r *SysReg) Name() string { return r.name }

// Get returns the current register value.
func (r *SysReg) Get() uint64 { return r.read() }

// Set writes v to the register. Writes to a read-only register are ignored.
func (r *SysReg) Set(v uint64) {
	if r.write != nil {
		r.write(v)
	}
}

// Modify clears the bits in clearMask, sets the bits in setMask and writes the
// result back with a single register write.
func (r *SysReg) Modify(clearMask, setMask uint64) {
	r.Set((r.Get() &^ clearMask) | setMask)
}

var (
	// TTBR0 holds the physical address of the lower-half level 1 table.
	TTBR0 = NewSysReg("TTBR0_EL1", ReadTTBR0, WriteTTBR0)

	// TTBR1 holds the physical address of the higher-half level 1 table.
	TTBR1 = NewSysReg("TTBR1_EL1", ReadTTBR1, WriteTTBR1)

	// CLIDR identifies the cache types implemented at each level.
	CLIDR = NewSysReg("CLIDR_EL1", ReadCLIDR, nil)

	// CTR reports the minimum instruction and data cache line sizes.
	CTR = NewSysReg("CTR_EL0", ReadCTR, nil)
)

// currentELFn is mocked by tests and is automatically inlined by the compiler.
var currentELFn = CurrentEL

// ExceptionLevel returns the exception level the CPU currently executes at.
func ExceptionLevel() uint8 {
	return uint8(currentELFn()>>2) & 0x3
}
