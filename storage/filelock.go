package storage

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"syscall"
	"time"
)

const (
	lockPollInterval = 50 * time.Millisecond
	// minStaleLockAge is the least age at which an abandoned lock file is reclaimed.
	minStaleLockAge = time.Minute
)

// ErrLockTimeout is returned when another writer holds the store lock for too long.
var ErrLockTimeout = errors.New("store lock timeout")

// acquireFileLock creates path exclusively, waiting up to timeout for a
// concurrent holder to release it. The returned func releases the lock.
//
// A lock whose recorded PID is no longer running, or that is older than
// max(4*timeout, minStaleLockAge), is treated as left behind by a crashed
// writer and removed.
func acquireFileLock(path string, timeout time.Duration) (func(), error) {
	deadline := time.Now().Add(timeout)
	staleAge := 4 * timeout
	if staleAge < minStaleLockAge {
		staleAge = minStaleLockAge
	}

	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			_ = f.Close()
			return func() { _ = os.Remove(path) }, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("lock %q: %w", path, err)
		}

		if staleLock(path, staleAge) {
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("remove stale lock %q: %w", path, err)
			}
			continue
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s held by another writer (remove it if no writer is running)", ErrLockTimeout, path)
		}
		time.Sleep(lockPollInterval)
	}
}

// staleLock reports whether the lock at path was abandoned.
func staleLock(path string, maxAge time.Duration) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if time.Since(info.ModTime()) > maxAge {
		return true
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(string(bytes.TrimSpace(data)))
	if err != nil || pid <= 0 {
		// holder may still be writing its PID
		return false
	}
	return !processAlive(pid)
}

func processAlive(pid int) bool {
	if runtime.GOOS == "windows" {
		return true
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = p.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
