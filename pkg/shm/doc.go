// Package shm provides Segment, the shared memory record behind a ticket pool.
//
// A Segment is a fixed-size record in a named shared memory region:
//
//	offset  field         type
//	0       magic         uint32 ("TKP1", stored last)
//	4       version       uint32
//	8       owner pid     int64
//	16      total         int64
//	24      available     int64
//	32      allocated     int64
//	40      transactions  int64
//
// Segment does no locking of its own. Every counter access must happen while
// the caller holds the pool's token; see package pool.
//
// Example usage:
//
//	seg, err := shm.Create(ctx, shm.Options{Name: "/ticket_shm"})
//	// take the token
//	seg.Init(20, os.Getpid())
//	// give the token back
//	seg.Publish()
package shm
