//go:build unix

package storage

import "golang.org/x/sys/unix"

// statFS returns the total and available bytes of the filesystem holding
// the given path.
func statFS(path string) (quota, free int64, err error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, 0, err
	}
	bsize := int64(st.Bsize)
	return int64(st.Blocks) * bsize, int64(st.Bavail) * bsize, nil
}
