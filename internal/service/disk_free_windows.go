//go:build windows

package service

import (
	"fmt"
	"os"

	"golang.org/x/sys/windows"
)

// DiskUsage reports capacity and free space of the volume holding path.
func DiskUsage(path string) (DiskStats, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return DiskStats{}, err
	}
	if !stat.IsDir() {
		return DiskStats{}, fmt.Errorf("%s is not a directory", path)
	}

	ptr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return DiskStats{}, err
	}

	var freeBytes, totalBytes, totalFreeBytes uint64
	if err := windows.GetDiskFreeSpaceEx(ptr, &freeBytes, &totalBytes, &totalFreeBytes); err != nil {
		return DiskStats{}, fmt.Errorf("GetDiskFreeSpaceEx %s: %w", path, err)
	}

	return DiskStats{
		Path:       path,
		TotalBytes: int64(totalBytes),
		FreeBytes:  int64(freeBytes),
	}.withUsage(), nil
}
