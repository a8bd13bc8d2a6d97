//go:build linux || darwin

package secrets

import "golang.org/x/sys/unix"

// lockMemory keeps b out of swap. Failure (for example RLIMIT_MEMLOCK) is
// not fatal.
func lockMemory(b []byte) bool {
	return unix.Mlock(b) == nil
}

func unlockMemory(b []byte) {
	_ = unix.Munlock(b)
}
