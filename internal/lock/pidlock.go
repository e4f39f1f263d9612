// Package lock guards against a second bridge instance. The dedup cache is
// per-process, so two concurrent bridges would each forward the same event.
package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// PIDLock is an exclusive flock(2) held on a pid file. The lock lives as
// long as the file descriptor stays open.
type PIDLock struct {
	path string
	f    *os.File
}

// Acquire takes a non-blocking exclusive lock at lockPath and records the
// current pid in the file. Fails if another process holds the lock.
func Acquire(lockPath string) (*PIDLock, error) {
	if lockPath == "" {
		return nil, fmt.Errorf("lock path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("acquire lock (another bridge instance may be running): %w", err)
	}

	if err := f.Truncate(0); err != nil {
		releaseFd(f)
		return nil, fmt.Errorf("truncate lock file: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		releaseFd(f)
		return nil, fmt.Errorf("write pid: %w", err)
	}

	return &PIDLock{path: lockPath, f: f}, nil
}

// Release drops the lock and removes the pid file. Safe to call once.
func (l *PIDLock) Release() {
	if l == nil || l.f == nil {
		return
	}
	releaseFd(l.f)
	_ = os.Remove(l.path)
	l.f = nil
}

// Path returns the lock file location.
func (l *PIDLock) Path() string {
	return l.path
}

func releaseFd(f *os.File) {
	_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	_ = f.Close()
}
