//go:build linux

package shm

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
)

// MapRegion maps or exclusively creates a shared memory region (Linux implementation).
func MapRegion(ctx context.Context, opts MapOptions) (*MappedRegion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.Size <= 0 {
		return nil, fmt.Errorf("invalid region size %d", opts.Size)
	}
	shmPath, err := Path(opts.Dir, opts.Name)
	if err != nil {
		return nil, err
	}

	flags := unix.O_RDWR | unix.O_CLOEXEC
	if opts.Create {
		if !CanCreate(uint64(opts.Size), shmPath) {
			return nil, fmt.Errorf("%w: path %s size %d", ErrNoSpace, shmPath, opts.Size)
		}
		flags |= unix.O_CREAT | unix.O_EXCL
	}
	fd, err := unix.Open(shmPath, flags, 0600)
	if err != nil {
		switch {
		case errors.Is(err, unix.EEXIST):
			return nil, fmt.Errorf("%w: %s", ErrExist, shmPath)
		case errors.Is(err, unix.ENOENT):
			return nil, fmt.Errorf("%w: %s", ErrNotExist, shmPath)
		}
		return nil, fmt.Errorf("open: %w", err)
	}

	// fail undoes everything this call did; an existing region is only closed.
	fail := func(err error) (*MappedRegion, error) {
		_ = unix.Close(fd)
		if opts.Create {
			_ = unix.Unlink(shmPath)
		}
		return nil, err
	}

	if opts.Create {
		if err := unix.Ftruncate(fd, int64(opts.Size)); err != nil {
			if errors.Is(err, unix.ENOSPC) {
				return fail(fmt.Errorf("%w: ftruncate: %v", ErrNoSpace, err))
			}
			return fail(fmt.Errorf("ftruncate: %w", err))
		}
	} else {
		var st unix.Stat_t
		if err := unix.Fstat(fd, &st); err != nil {
			return fail(fmt.Errorf("fstat: %w", err))
		}
		if st.Size < int64(opts.Size) {
			return fail(fmt.Errorf("%w: %s has %d bytes, want %d", ErrTooSmall, shmPath, st.Size, opts.Size))
		}
	}

	addr, err := unix.Mmap(fd, 0, opts.Size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fail(fmt.Errorf("mmap: %w", err))
	}
	return &MappedRegion{
		Addr: addr,
		Name: opts.Name,
		Path: shmPath,
		fd:   fd,
	}, nil
}

// UnmapRegion unmaps and closes the shared memory region (Linux implementation).
// It is a no-op on a region that was already unmapped.
func UnmapRegion(ctx context.Context, region *MappedRegion) error {
	if region == nil || region.Addr == nil {
		return nil
	}
	var err error
	if merr := unix.Munmap(region.Addr); merr != nil {
		err = multierr.Append(err, fmt.Errorf("munmap: %w", merr))
	}
	region.Addr = nil
	if region.fd >= 0 {
		if cerr := unix.Close(region.fd); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("close: %w", cerr))
		}
		region.fd = -1
	}
	return err
}

// UnlinkRegion removes the name of a region. Mappings that are still alive
// keep working; a missing name is not an error.
func UnlinkRegion(dir, name string) error {
	shmPath, err := Path(dir, name)
	if err != nil {
		return err
	}
	if err := unix.Unlink(shmPath); err != nil && !errors.Is(err, unix.ENOENT) {
		return fmt.Errorf("unlink %s: %w", shmPath, err)
	}
	return nil
}
