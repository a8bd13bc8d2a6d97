package secrets

import (
	"fmt"
	"sync"

	kerrors "github.com/PolarWolf314/casevault/internal/errors"
)

// KeySize is the size in bytes of a derived vault key.
const KeySize = 32

// Key holds derived key material. The zero value is not usable; create keys
// with NewKey or DeriveKey.
//
// Key never prints its contents and zeroes them on Destroy. Code that needs
// the material goes through Use, which holds Destroy off until it returns.
type Key struct {
	mu        sync.RWMutex
	buf       []byte
	locked    bool
	destroyed bool
}

// NewKey copies b into a new secret buffer.
func NewKey(b []byte) (*Key, error) {
	if len(b) != KeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", kerrors.ErrInvalidKeyLength, KeySize, len(b))
	}

	k := &Key{buf: make([]byte, KeySize)}
	copy(k.buf, b)
	k.locked = lockMemory(k.buf)

	return k, nil
}

// Bytes returns a copy of the key material, or nil once the key is
// destroyed.
func (k *Key) Bytes() []byte {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if k.destroyed {
		return nil
	}
	return append([]byte(nil), k.buf...)
}

// Use calls fn with the live key material. Destroy blocks until fn returns,
// so fn sees either the whole key or ErrVaultLocked. fn must not retain b.
func (k *Key) Use(fn func(b []byte) error) error {
	if k == nil {
		return fmt.Errorf("%w: no key", kerrors.ErrVaultLocked)
	}

	k.mu.RLock()
	defer k.mu.RUnlock()

	if k.destroyed {
		return fmt.Errorf("%w: key destroyed", kerrors.ErrVaultLocked)
	}
	return fn(k.buf)
}

// Clone returns an independent copy of the key.
func (k *Key) Clone() (*Key, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if k.destroyed {
		return nil, fmt.Errorf("%w: key destroyed", kerrors.ErrVaultLocked)
	}
	return NewKey(k.buf)
}

// Destroyed reports whether Destroy has been called.
func (k *Key) Destroyed() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.destroyed
}

// Destroy zeroes the key material. It is safe to call more than once.
func (k *Key) Destroy() {
	if k == nil {
		return
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if k.destroyed {
		return
	}

	zero(k.buf)
	if k.locked {
		unlockMemory(k.buf)
		k.locked = false
	}
	k.destroyed = true
}

// String implements fmt.Stringer without revealing key material.
func (k *Key) String() string {
	return "secrets.Key(redacted)"
}

// GoString keeps %#v from printing the buffer.
func (k *Key) GoString() string {
	return k.String()
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
