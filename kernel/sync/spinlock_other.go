//go:build !arm64

package sync

import "sync/atomic"

func archAcquireSpinlock(state *uint32) {
	for !atomic.CompareAndSwapUint32(state, 0, 1) {
		if yieldFn != nil {
			yieldFn()
		}
	}
}
