package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// writerLease is a cross-process exclusive lock guarding a single
// database file. One process owns a corpus at a time; a second process
// attempting to open the same file fails fast instead of corrupting WAL
// state.
type writerLease struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// newWriterLease returns a lease for dbPath, guarded by a sibling
// "<dbPath>.lock" file.
func newWriterLease(dbPath string) *writerLease {
	lockPath := dbPath + ".lock"
	return &writerLease{path: lockPath, flock: flock.New(lockPath)}
}

// tryAcquire attempts a non-blocking exclusive lock. Returns false if
// another process already holds it.
func (l *writerLease) tryAcquire() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return false, fmt.Errorf("create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquire writer lease: %w", err)
	}
	if acquired {
		l.locked = true
	}
	return acquired, nil
}

// release drops the lease. Safe to call when not held.
func (l *writerLease) release() error {
	if !l.locked {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("release writer lease: %w", err)
	}
	l.locked = false
	return nil
}
