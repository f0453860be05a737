// Package lock provides the advisory file lock that keeps two crawls from
// writing the same snapshot at once.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/Sriram-PR/statifier/pkg/utils"
)

// FileLock is a non-blocking exclusive flock on a file.
// The lock is released when Unlock is called or the process exits.
type FileLock struct {
	path string
	mu   sync.Mutex
	file *os.File
}

// New returns an unlocked FileLock for path
func New(path string) *FileLock {
	return &FileLock{path: path}
}

// Path returns the lock file path
func (l *FileLock) Path() string { return l.path }

// TryLock takes the lock without waiting. Returns ErrLockHeld if another holder has it.
func (l *FileLock) TryLock() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		return fmt.Errorf("%w: already held by this process: %s", utils.ErrLockHeld, l.path)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("%w: creating lock directory: %w", utils.ErrFilesystem, err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("%w: opening lock file '%s': %w", utils.ErrFilesystem, l.path, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return fmt.Errorf("%w: %s", utils.ErrLockHeld, l.path)
		}
		return fmt.Errorf("%w: locking '%s': %w", utils.ErrFilesystem, l.path, err)
	}

	// Holder PID is informational only
	if err := f.Truncate(0); err == nil {
		f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
	}
	l.file = f
	return nil
}

// Unlock releases the lock. Unlocking a lock that is not held is a no-op.
func (l *FileLock) Unlock() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	f := l.file
	l.file = nil
	f.Truncate(0)
	if err := unix.Flock(int(f.Fd()), unix.LOCK_UN); err != nil {
		f.Close()
		return fmt.Errorf("%w: unlocking '%s': %w", utils.ErrFilesystem, l.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: closing lock file '%s': %w", utils.ErrFilesystem, l.path, err)
	}
	return nil
}

// Held reports whether this FileLock currently holds the lock
func (l *FileLock) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file != nil
}

// IsLocked probes whether any holder, in this process or another, has the lock on path
func IsLocked(path string) (bool, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: opening lock file '%s': %w", utils.ErrFilesystem, path, err)
	}
	defer f.Close()

	err = unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if errors.Is(err, unix.EWOULDBLOCK) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: probing '%s': %w", utils.ErrFilesystem, path, err)
	}
	unix.Flock(int(f.Fd()), unix.LOCK_UN)
	return false, nil
}
