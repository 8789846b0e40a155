//go:build !arm64

package cpu

// The stand-ins below let the kernel packages build and run their tests on a
// development host. They never touch hardware state.

func Halt() {
	for {
	}
}

// CurrentEL reports EL1 on the host.
func CurrentEL() uint64 { return 1 << 2 }

func SetVectorBase(_ uintptr) {}

func DataSyncBarrier() {}
func DataSyncBarrierInner() {}
func DataSyncBarrierInnerStore() {}
func InstructionSyncBarrier() {}
func CleanDataCacheVA(_ uintptr) {}
func CleanDataCacheVAToPoU(_ uintptr) {}
func InvalidateDataCacheVA(_ uintptr) {}
func CleanInvalidateDataCacheVA(_ uintptr) {}
func InvalidateInstructionCacheVA(_ uintptr) {}
func InvalidateInstructionCacheAll() {}
func TLBInvalidateAll() {}
func TLBInvalidateASID(_ uint64) {}
func TLBInvalidateVA(_ uint64) {}

// ReadCLIDR describes a single unified level 1 cache on the host.
func ReadCLIDR() uint64 { return 0x4 | 1<<24 | 1<<27 | 1<<21 }

// ReadCCSIDR describes a 64-byte line, 4-way, 128-set cache.
func ReadCCSIDR(_ uint64) uint64 { return 2 | 3<<3 | 127<<13 }

// ReadCTR reports 64-byte minimum instruction and data lines.
func ReadCTR() uint64 { return 4 | 4<<16 }

var ttbr0, ttbr1 uint64

func ReadTTBR0() uint64   { return ttbr0 }
func WriteTTBR0(v uint64) { ttbr0 = v }
func ReadTTBR1() uint64   { return ttbr1 }
func WriteTTBR1(v uint64) { ttbr1 = v }
