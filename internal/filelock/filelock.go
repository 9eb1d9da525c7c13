// Package filelock guards a watched directory tree against concurrent
// watch sessions. Two watchers following the same tree would each hold
// their own tracking caches and race on change notifications, so the
// watch command takes an exclusive session lock before starting.
package filelock

import (
	"fmt"

	"github.com/gofrs/flock"
)

// SessionLock wraps a flock file lock for coordinating watch sessions.
type SessionLock struct {
	flock *flock.Flock
	path  string
}

// New creates a session lock backed by the lock file at path.
// The lock file is created on first acquisition if it doesn't exist.
func New(path string) *SessionLock {
	return &SessionLock{
		flock: flock.New(path),
		path:  path,
	}
}

// Path returns the lock file path.
func (sl *SessionLock) Path() string {
	return sl.path
}

// TryLock attempts to acquire the session lock without blocking.
// Returns true if the lock was acquired, false if another session
// holds it. Returns an error if the lock operation itself fails.
func (sl *SessionLock) TryLock() (bool, error) {
	acquired, err := sl.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to try lock on %s: %w", sl.path, err)
	}
	return acquired, nil
}

// Lock acquires the session lock, blocking until it is available.
func (sl *SessionLock) Lock() error {
	if err := sl.flock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire lock on %s: %w", sl.path, err)
	}
	return nil
}

// Unlock releases the session lock.
func (sl *SessionLock) Unlock() error {
	if err := sl.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock on %s: %w", sl.path, err)
	}
	return nil
}
