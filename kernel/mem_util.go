package kernel

import "unsafe"

// Memset sets size bytes at the given address to the supplied value. Instead
// of a byte loop it seeds the first byte and then doubles the initialized
// prefix with copy, which needs log2(size) calls for page-sized regions.
func Memset(addr uintptr, value byte, size uintptr) {
	if size == 0 {
		return
	}

	target := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)

	target[0] = value
	for index := uintptr(1); index < size; index *= 2 {
		copy(target[index:], target[:index])
	}
}

// MemsetRange clears the half-open address range [start, end) to value. It is
// the bulk-clear primitive used when handing out freshly mapped memory.
func MemsetRange(start, end uintptr, value byte) {
	if end <= start {
		return
	}
	Memset(start, value, end-start)
}

// Memcopy copies size bytes from src to dst.
func Memcopy(src, dst uintptr, size uintptr) {
	if size == 0 {
		return
	}

	srcSlice := unsafe.Slice((*byte)(unsafe.Pointer(src)), size)
	dstSlice := unsafe.Slice((*byte)(unsafe.Pointer(dst)), size)

	copy(dstSlice, srcSlice)
}
