//go:build unix

package scan

import (
	"os"
	"syscall"
)

// statID extracts the (device, inode) pair from a stat result.
func statID(info os.FileInfo) (fileID, bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return fileID{}, false
	}
	return fileID{dev: uint64(st.Dev), ino: st.Ino}, true //nolint:unconvert // Dev is int32 on some platforms
}
