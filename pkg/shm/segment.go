package shm

import (
	"context"
	"errors"
	"fmt"
	"unsafe"

	internalshm "github.com/srediag/shm-pool/internal/shm"
)

const (
	// Magic marks a fully initialized segment.
	Magic uint32 = 0x544B5031
	// Version is the record layout version.
	Version uint32 = 1
)

var (
	// ErrNotReady is returned by Open while the owner has not published the
	// segment yet.
	ErrNotReady = errors.New("segment not initialized yet")
	// ErrBadLayout is returned by Open for a region written by something else.
	ErrBadLayout = errors.New("segment has an unknown layout")
	// ErrInvariant is returned by State.Check.
	ErrInvariant = errors.New("pool invariant violated")
)

type record struct {
	magic        uint32
	version      uint32
	ownerPID     int64
	total        int64
	available    int64
	allocated    int64
	transactions int64
}

// Size is the size of the shared record in bytes.
const Size = int(unsafe.Sizeof(record{}))

// State is a copy of the four pool counters.
type State struct {
	Total        int64
	Available    int64
	Allocated    int64
	Transactions int64
}

// Check verifies 0 <= available <= total and allocated + available = total.
func (s State) Check() error {
	if s.Available < 0 || s.Available > s.Total {
		return fmt.Errorf("%w: available %d outside [0, %d]", ErrInvariant, s.Available, s.Total)
	}
	if s.Allocated+s.Available != s.Total {
		return fmt.Errorf("%w: allocated %d + available %d != total %d", ErrInvariant, s.Allocated, s.Available, s.Total)
	}
	if s.Transactions < 0 || s.Transactions > s.Allocated {
		return fmt.Errorf("%w: %d transactions for %d allocated units", ErrInvariant, s.Transactions, s.Allocated)
	}
	return nil
}

// Options names a segment.
type Options struct {
	Name string
	// Dir overrides the shared memory directory (default /dev/shm).
	Dir string
}

// Segment is a mapped pool record.
type Segment struct {
	opts   Options
	region *internalshm.MappedRegion
	rec    *record
}

// Create exclusively creates and maps a zeroed, unpublished segment.
func Create(ctx context.Context, opts Options) (*Segment, error) {
	region, err := internalshm.MapRegion(ctx, internalshm.MapOptions{
		Name:   opts.Name,
		Size:   Size,
		Create: true,
		Dir:    opts.Dir,
	})
	if err != nil {
		return nil, err
	}
	return newSegment(opts, region), nil
}

// Open maps an existing segment and checks that it was published with a
// layout this package understands.
func Open(ctx context.Context, opts Options) (*Segment, error) {
	region, err := internalshm.MapRegion(ctx, internalshm.MapOptions{
		Name: opts.Name,
		Size: Size,
		Dir:  opts.Dir,
	})
	if err != nil {
		return nil, err
	}
	s := newSegment(opts, region)
	switch internalshm.AtomicLoadUint32(unsafe.Pointer(&s.rec.magic)) {
	case Magic:
	case 0:
		_ = s.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotReady, region.Path)
	default:
		_ = s.Close()
		return nil, fmt.Errorf("%w: %s", ErrBadLayout, region.Path)
	}
	if s.rec.version != Version {
		_ = s.Close()
		return nil, fmt.Errorf("%w: %s has version %d", ErrBadLayout, region.Path, s.rec.version)
	}
	return s, nil
}

func newSegment(opts Options, region *internalshm.MappedRegion) *Segment {
	return &Segment{
		opts:   opts,
		region: region,
		rec:    (*record)(unsafe.Pointer(&region.Addr[0])),
	}
}

// Name returns the segment name.
func (s *Segment) Name() string { return s.opts.Name }

// Path returns the file backing the segment.
func (s *Segment) Path() string { return s.region.Path }

// OwnerPID returns the pid of the process that created the segment.
func (s *Segment) OwnerPID() int64 { return s.rec.ownerPID }

// Mapped reports whether the segment is still mapped.
func (s *Segment) Mapped() bool { return s.rec != nil }

// Init writes the initial counters. Callers hold the token.
func (s *Segment) Init(total int64, ownerPID int) {
	s.rec.version = Version
	s.rec.ownerPID = int64(ownerPID)
	s.rec.total = total
	s.rec.available = total
	s.rec.allocated = 0
	s.rec.transactions = 0
}

// Publish makes the segment visible to Open. It must follow Init.
func (s *Segment) Publish() {
	internalshm.AtomicStoreUint32(unsafe.Pointer(&s.rec.magic), Magic)
}

// Snapshot copies the counters. Callers hold the token.
func (s *Segment) Snapshot() State {
	return State{
		Total:        s.rec.total,
		Available:    s.rec.available,
		Allocated:    s.rec.allocated,
		Transactions: s.rec.transactions,
	}
}

// Available returns the available counter. Callers hold the token.
func (s *Segment) Available() int64 { return s.rec.available }

// Withdraw moves grant units from available to allocated and counts one
// transaction. Callers hold the token and guarantee 0 < grant <= available.
func (s *Segment) Withdraw(grant int64) State {
	s.rec.available -= grant
	s.rec.allocated += grant
	s.rec.transactions++
	return s.Snapshot()
}

// Close unmaps the segment. It is idempotent and leaves the name in place.
func (s *Segment) Close() error {
	if s.rec == nil {
		return nil
	}
	s.rec = nil
	return internalshm.UnmapRegion(context.Background(), s.region)
}

// Unlink removes the segment's name.
func (s *Segment) Unlink() error {
	return internalshm.UnlinkRegion(s.opts.Dir, s.opts.Name)
}

// Unlink removes a segment name without mapping it.
func Unlink(opts Options) error {
	return internalshm.UnlinkRegion(opts.Dir, opts.Name)
}
