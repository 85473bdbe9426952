package shm

import (
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/v3/disk"
)

// CanCreate reports whether the filesystem holding path has size bytes free.
// When usage cannot be determined it answers true and lets the create fail
// on its own.
func CanCreate(size uint64, path string) bool {
	stat, err := disk.Usage(filepath.Dir(path))
	if err != nil {
		return true
	}
	return stat.Free >= size
}

// Exists reports whether a region or token file is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
