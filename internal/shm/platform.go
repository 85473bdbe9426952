// Package shm contains platform-specific helpers for named shared memory regions.
//
// A region is a file under a tmpfs directory (DefaultDir on Linux) mapped
// MAP_SHARED into every process that opens it, which is what shm_open(3)
// does under the hood. Names follow shm_open conventions: an optional
// leading slash and no other slashes.
package shm

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// DefaultDir is where named regions live.
const DefaultDir = "/dev/shm"

var (
	// ErrExist is returned by an exclusive create when the name is taken.
	ErrExist = errors.New("shm: region already exists")
	// ErrNotExist is returned when opening a name nobody created.
	ErrNotExist = errors.New("shm: region does not exist")
	// ErrNoSpace is returned when the backing filesystem cannot hold the region.
	ErrNoSpace = errors.New("shm: not enough space left")
	// ErrTooSmall is returned when an existing region is shorter than requested.
	ErrTooSmall = errors.New("shm: region is smaller than requested")
	// ErrInvalidName is returned for empty names or names with inner slashes.
	ErrInvalidName = errors.New("shm: invalid name")
	// ErrUnsupported is returned on platforms without a shm filesystem.
	ErrUnsupported = errors.New("shm: unsupported platform")
)

// MappedRegion represents a memory-mapped shared region.
type MappedRegion struct {
	Addr []byte
	Name string
	Path string
	fd   int
}

// MapOptions defines options for mapping shared memory.
type MapOptions struct {
	Name string
	Size int
	// Create requests an exclusive create; it fails with ErrExist when the
	// name is already in use and never touches the existing region.
	Create bool
	// Dir overrides DefaultDir.
	Dir string
}

// Path resolves a region name to its backing file.
func Path(dir, name string) (string, error) {
	base := strings.TrimPrefix(name, "/")
	if base == "" || strings.Contains(base, "/") || base == "." || base == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if dir == "" {
		dir = DefaultDir
	}
	return filepath.Join(dir, base), nil
}

// Function implementations are provided in platform-specific files (platform_linux.go, platform_other.go).
