package store

import (
	"crypto/sha1" //nolint:gosec // content addressing, not crypto
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Lock is a blocking exclusive advisory file lock. Concurrent invocations
// contending for the same resource queue on it; invocations on different
// resources use different lock files and never block each other.
type Lock struct {
	fl *flock.Flock
}

// AcquireLock blocks until the exclusive lock on path is held. The lock
// file is created if missing.
func AcquireLock(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	fl := flock.New(path)
	if err := fl.Lock(); err != nil {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	return &Lock{fl: fl}, nil
}

// Release drops the lock. Safe to call from a defer on every exit path.
func (l *Lock) Release() {
	if l == nil || l.fl == nil {
		return
	}
	_ = l.fl.Unlock()
}

// DirLockPath returns the lock file guarding the file-list cache entry for
// dir, one lock file per enumerated directory.
func DirLockPath(stateDir, dir string) string {
	return filepath.Join(stateDir, "dirlist-"+hashKey(dir)+".lock")
}

// hashKey derives a short filesystem-safe name from an arbitrary string.
func hashKey(s string) string {
	sum := sha1.Sum([]byte(s)) //nolint:gosec // content addressing, not crypto
	return hex.EncodeToString(sum[:])
}
