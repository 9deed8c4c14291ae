// Package lock keeps two ingestion runs from touching the same alias at once.
package lock

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	docerrors "github.com/Aman-CERP/docindex/internal/errors"
)

// FileName is the lock file created in the data directory.
const FileName = "docindex.lock"

// RunLock is a cross-process exclusive lock backed by gofrs/flock.
type RunLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// New returns an unlocked RunLock for <dir>/docindex.lock.
func New(dir string) *RunLock {
	path := filepath.Join(dir, FileName)
	return &RunLock{
		path:  path,
		flock: flock.New(path),
	}
}

// Acquire takes the lock without blocking. A lock held by another process
// is ERR_204_LOCK_HELD.
func (l *RunLock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return docerrors.New(docerrors.ErrCodeFileRead, "failed to create lock directory", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return docerrors.New(docerrors.ErrCodeFileRead,
			fmt.Sprintf("failed to lock %s", l.path), err)
	}
	if !acquired {
		return docerrors.New(docerrors.ErrCodeLockHeld, "another ingestion run is in progress", nil).
			WithDetail("lock", l.path).
			WithSuggestion("wait for the other run to finish; remove the lock file only if no docindex process is running")
	}
	l.locked = true
	return nil
}

// Release unlocks. Safe to call more than once.
func (l *RunLock) Release() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *RunLock) Path() string { return l.path }

// Held reports whether this RunLock holds the lock.
func (l *RunLock) Held() bool { return l.locked }
