package shm

import (
	"sync/atomic"
	"unsafe"
)

// AtomicLoadUint32 loads a uint32 from shared memory atomically.
// addr must be 4-byte aligned.
func AtomicLoadUint32(addr unsafe.Pointer) uint32 {
	return atomic.LoadUint32((*uint32)(addr))
}

// AtomicStoreUint32 stores a uint32 to shared memory atomically.
// addr must be 4-byte aligned.
func AtomicStoreUint32(addr unsafe.Pointer, val uint32) {
	atomic.StoreUint32((*uint32)(addr), val)
}
