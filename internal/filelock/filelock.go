// Package filelock guards the orchestrator's two JSON state files (the
// queue's persisted messages and the Core's plan/task/worker snapshot)
// against concurrent writers: a cross-process advisory lock plus
// temp-file-then-rename atomic writes, so a reader never observes a
// partial snapshot.
package filelock

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Lock is a cross-process advisory lock over a single path, backed by
// gofrs/flock.
type Lock struct {
	flock *flock.Flock
	path  string
}

// New returns a Lock for path. The lock file is created lazily on first
// acquisition.
func New(path string) *Lock {
	return &Lock{flock: flock.New(path), path: path}
}

// Lock blocks until the exclusive lock is acquired.
func (l *Lock) Lock() error {
	if err := l.flock.Lock(); err != nil {
		return fmt.Errorf("acquire lock on %s: %w", l.path, err)
	}
	return nil
}

// TryLock attempts the exclusive lock without blocking. ok is false if
// another holder has it.
func (l *Lock) TryLock() (ok bool, err error) {
	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("try lock on %s: %w", l.path, err)
	}
	return acquired, nil
}

// Unlock releases the lock.
func (l *Lock) Unlock() error {
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("release lock on %s: %w", l.path, err)
	}
	return nil
}

// AtomicWrite writes data to path via a same-directory temp file followed
// by rename, so a concurrent reader sees either the old or the new
// contents, never a partial write.
func AtomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmp != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file to %s: %w", path, err)
	}
	tmp = nil // renamed; nothing left for the deferred cleanup to remove

	return nil
}

// LockAndWrite acquires the lock file at path+".lock", atomically writes
// data to path, then releases the lock.
func LockAndWrite(path string, data []byte) error {
	lock := New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return err
	}
	defer lock.Unlock()

	return AtomicWrite(path, data)
}
