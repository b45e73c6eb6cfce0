// Package lock wraps OS advisory file locking: shared locks for readers
// and in-flight flushers, exclusive (non-blocking) locks for purge.
package lock

import (
	"os"
	"syscall"

	"github.com/Priyanshu23/robt/robterr"
)

// Shared acquires a shared (read) advisory lock on f. Multiple holders
// may hold a shared lock concurrently; it excludes only an exclusive
// holder.
func Shared(f *os.File) error {
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_SH); err != nil {
		return robterr.Wrap(robterr.IOError, err, "failed to acquire shared lock on %s", f.Name())
	}
	return nil
}

// Exclusive attempts a non-blocking exclusive lock on f. If the lock is
// already held elsewhere it returns a Retry error rather than blocking,
// matching purge's "don't delete what's in use" contract.
func Exclusive(f *os.File) error {
	err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	if err == nil {
		return nil
	}
	if err == syscall.EWOULDBLOCK {
		return robterr.At(robterr.Retry, "%s is locked by another process", f.Name())
	}
	return robterr.Wrap(robterr.IOError, err, "failed to acquire exclusive lock on %s", f.Name())
}

// Unlock releases any lock held on f by this process.
func Unlock(f *os.File) error {
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_UN); err != nil {
		return robterr.Wrap(robterr.IOError, err, "failed to unlock %s", f.Name())
	}
	return nil
}
