//go:build !linux && !darwin

package secrets

func lockMemory(b []byte) bool { return false }

func unlockMemory(b []byte) {}
