package cpu

// Halt stops instruction execution.
func Halt()

// CurrentEL returns the raw value of the CurrentEL register.
func CurrentEL() uint64

// SetVectorBase installs the exception vector table located at addr.
func SetVectorBase(addr uintptr)

// DataSyncBarrier issues a DSB SY.
func DataSyncBarrier()

// DataSyncBarrierInner issues a DSB ISH.
func DataSyncBarrierInner()

// DataSyncBarrierInnerStore issues a DSB ISHST, ordering prior stores (e.g.
// translation table writes) before subsequent TLB maintenance.
func DataSyncBarrierInnerStore()

// InstructionSyncBarrier issues an ISB.
func InstructionSyncBarrier()

// CleanDataCacheVA cleans the data cache line holding va to the point of
// coherency (DC CVAC).
func CleanDataCacheVA(va uintptr)

// CleanDataCacheVAToPoU cleans the data cache line holding va to the point of
// unification (DC CVAU).
func CleanDataCacheVAToPoU(va uintptr)

// InvalidateDataCacheVA invalidates the data cache line holding va to the
// point of coherency without writing it back (DC IVAC).
func InvalidateDataCacheVA(va uintptr)

// CleanInvalidateDataCacheVA cleans and invalidates the data cache line
// holding va to the point of coherency (DC CIVAC).
func CleanInvalidateDataCacheVA(va uintptr)

// InvalidateInstructionCacheVA invalidates the instruction cache line holding
// va to the point of unification (IC IVAU).
func InvalidateInstructionCacheVA(va uintptr)

// InvalidateInstructionCacheAll invalidates all instruction caches in the
// inner shareable domain (IC IALLUIS).
func InvalidateInstructionCacheAll()

// TLBInvalidateAll drops every EL1&0 translation in the inner shareable
// domain (TLBI VMALLE1IS).
func TLBInvalidateAll()

// TLBInvalidateASID drops the translations tagged with the ASID encoded in
// bits 63:48 of arg (TLBI ASIDE1IS).
func TLBInvalidateASID(arg uint64)

// TLBInvalidateVA drops the translations for the page encoded in arg: bits
// 43:0 hold VA[55:12] and bits 63:48 the ASID (TLBI VAE1IS).
func TLBInvalidateVA(arg uint64)

// ReadCLIDR returns the value of CLIDR_EL1.
func ReadCLIDR() uint64

// ReadCCSIDR selects a cache through CSSELR_EL1 and returns the matching
// CCSIDR_EL1 value.
func ReadCCSIDR(csselr uint64) uint64

// ReadCTR returns the value of CTR_EL0.
func ReadCTR() uint64

// ReadTTBR0 returns the value of TTBR0_EL1.
func ReadTTBR0() uint64

// WriteTTBR0 sets TTBR0_EL1.
func WriteTTBR0(v uint64)

// ReadTTBR1 returns the value of TTBR1_EL1.
func ReadTTBR1() uint64

// WriteTTBR1 sets TTBR1_EL1.
func WriteTTBR1(v uint64)
