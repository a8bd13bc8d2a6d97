package secrets_test

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	kerrors "github.com/PolarWolf314/casevault/internal/errors"
	"github.com/PolarWolf314/casevault/internal/secrets"
)

func TestKeyDestroyZeroes(t *testing.T) {
	key, err := secrets.NewKey(bytes.Repeat([]byte{0xAB}, secrets.KeySize))
	require.NoError(t, err)

	// Hold on to the backing buffer to observe the wipe.
	var buf []byte
	require.NoError(t, key.Use(func(b []byte) error {
		buf = b
		return nil
	}))
	require.Len(t, buf, secrets.KeySize)

	key.Destroy()
	require.True(t, key.Destroyed())
	require.Nil(t, key.Bytes())
	require.Equal(t, make([]byte, secrets.KeySize), buf)

	err = key.Use(func([]byte) error { return nil })
	require.ErrorIs(t, err, kerrors.ErrVaultLocked)

	// A second Destroy is a no-op.
	key.Destroy()
}

func TestKeyCopiesInput(t *testing.T) {
	raw := bytes.Repeat([]byte{0x01}, secrets.KeySize)

	key, err := secrets.NewKey(raw)
	require.NoError(t, err)

	raw[0] = 0xFF
	require.Equal(t, byte(0x01), key.Bytes()[0])

	out := key.Bytes()
	out[1] = 0xFF
	require.Equal(t, byte(0x01), key.Bytes()[1])
}

func TestKeyUseHoldsOffDestroy(t *testing.T) {
	key, err := secrets.NewKey(bytes.Repeat([]byte{0x0C}, secrets.KeySize))
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- key.Use(func(b []byte) error {
			close(entered)
			<-release
			if !bytes.Equal(b, bytes.Repeat([]byte{0x0C}, secrets.KeySize)) {
				return fmt.Errorf("key changed while in use")
			}
			return nil
		})
	}()

	<-entered
	destroyed := make(chan struct{})
	go func() {
		key.Destroy()
		close(destroyed)
	}()

	select {
	case <-destroyed:
		t.Fatal("Destroy returned while the key was in use")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-done)
	<-destroyed
	require.True(t, key.Destroyed())
}

func TestKeyClone(t *testing.T) {
	key, err := secrets.NewKey(bytes.Repeat([]byte{0x07}, secrets.KeySize))
	require.NoError(t, err)

	clone, err := key.Clone()
	require.NoError(t, err)

	key.Destroy()
	require.Equal(t, bytes.Repeat([]byte{0x07}, secrets.KeySize), clone.Bytes())

	_, err = key.Clone()
	require.ErrorIs(t, err, kerrors.ErrVaultLocked)
}

func TestKeyRejectsWrongLength(t *testing.T) {
	_, err := secrets.NewKey(make([]byte, 16))
	require.ErrorIs(t, err, kerrors.ErrInvalidKeyLength)
}

func TestKeyNeverPrintsMaterial(t *testing.T) {
	key, err := secrets.NewKey(bytes.Repeat([]byte{'k'}, secrets.KeySize))
	require.NoError(t, err)

	for _, verb := range []string{"%v", "%s", "%#v", "%+v"} {
		out := fmt.Sprintf(verb, key)
		require.NotContains(t, out, "kkkk", "verb %s leaked key material", verb)
	}
}
