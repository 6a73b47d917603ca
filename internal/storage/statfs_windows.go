//go:build windows

package storage

import "golang.org/x/sys/windows"

// statFS returns the total and available bytes of the volume holding the
// given path.
func statFS(path string) (quota, free int64, err error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, 0, err
	}
	var freeBytes, totalBytes, totalFree uint64
	if err := windows.GetDiskFreeSpaceEx(p, &freeBytes, &totalBytes, &totalFree); err != nil {
		return 0, 0, err
	}
	return int64(totalBytes), int64(freeBytes), nil
}
