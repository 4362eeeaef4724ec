//go:build linux || darwin

package handler

import "syscall"

// diskStats returns disk usage for the filesystem holding path.
func diskStats(path string) (total, free int64, ok bool) {
	var statfs syscall.Statfs_t
	if err := syscall.Statfs(path, &statfs); err != nil {
		return 0, 0, false
	}
	total = int64(statfs.Blocks) * int64(statfs.Bsize)
	free = int64(statfs.Bavail) * int64(statfs.Bsize)
	return total, free, true
}
