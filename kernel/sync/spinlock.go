// Package sync provides the busy-wait lock used to serialize cross-core access
// to translation tables and memory allocators.
package sync

import "sync/atomic"

var (
	// yieldFn is invoked between acquisition attempts by the portable
	// implementation. Tests set it to runtime.Gosched.
	yieldFn func()
)

// Spinlock implements a lock where each core trying to acquire it busy-waits
// till the lock becomes available. The lock never parks the caller and an
// acquisition attempt never times out.
type Spinlock struct {
	state uint32
}

// Acquire blocks until the lock can be acquired by the calling core. Any
// attempt to re-acquire a lock already held by the same core will cause a
// deadlock.
func (l *Spinlock) Acquire() {
	archAcquireSpinlock(&l.state)
}

// TryToAcquire attempts to acquire the lock and returns true if the lock could
// be acquired or false otherwise.
func (l *Spinlock) TryToAcquire() bool {
	return atomic.SwapUint32(&l.state, 1) == 0
}

// Release relinquishes a held lock allowing other cores to acquire it. Calling
// Release while the lock is free has no effect.
func (l *Spinlock) Release() {
	atomic.StoreUint32(&l.state, 0)
}
