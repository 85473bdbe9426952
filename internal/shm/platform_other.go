//go:build !linux

package shm

import (
	"context"
)

// MapRegion is not available without a shm filesystem.
func MapRegion(ctx context.Context, opts MapOptions) (*MappedRegion, error) {
	return nil, ErrUnsupported
}

// UnmapRegion is not available without a shm filesystem.
func UnmapRegion(ctx context.Context, region *MappedRegion) error {
	return nil
}

// UnlinkRegion is not available without a shm filesystem.
func UnlinkRegion(dir, name string) error {
	return ErrUnsupported
}
