//go:build !windows

package service

import (
	"fmt"
	"os"
	"syscall"
)

// DiskUsage reports capacity and free space of the filesystem holding path.
func DiskUsage(path string) (DiskStats, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return DiskStats{}, err
	}
	if !stat.IsDir() {
		return DiskStats{}, fmt.Errorf("%s is not a directory", path)
	}

	var fs syscall.Statfs_t
	if err := syscall.Statfs(path, &fs); err != nil {
		return DiskStats{}, fmt.Errorf("statfs %s: %w", path, err)
	}

	return DiskStats{
		Path:       path,
		TotalBytes: int64(fs.Blocks) * int64(fs.Bsize),
		FreeBytes:  int64(fs.Bavail) * int64(fs.Bsize),
	}.withUsage(), nil
}
