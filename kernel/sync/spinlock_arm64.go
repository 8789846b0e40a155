package sync

// archAcquireSpinlock spins on an exclusive load of state, sleeping in WFE
// until the holder's release store wakes it up.
func archAcquireSpinlock(state *uint32)
