//go:build !unix

package scan

import "os"

// statID has no portable implementation outside unix; without stable ids the
// walker simply descends every directory, losing only the cycle guard.
func statID(_ os.FileInfo) (fileID, bool) {
	return fileID{}, false
}
