//go:build windows
// +build windows

package baseline

import (
	"os"
	"syscall"
)

const lockfileExclusiveLock = 0x2
const lockfileFailImmediately = 0x1

func lockFile(f *os.File) error {
	handle := syscall.Handle(f.Fd())
	var overlapped syscall.Overlapped
	return syscall.LockFileEx(handle, lockfileExclusiveLock, 0, 1, 0, &overlapped)
}

func tryLockFile(f *os.File) error {
	handle := syscall.Handle(f.Fd())
	var overlapped syscall.Overlapped
	return syscall.LockFileEx(handle, lockfileExclusiveLock|lockfileFailImmediately, 0, 1, 0, &overlapped)
}

func unlockFile(f *os.File) error {
	handle := syscall.Handle(f.Fd())
	var overlapped syscall.Overlapped
	return syscall.UnlockFileEx(handle, 0, 1, 0, &overlapped)
}
