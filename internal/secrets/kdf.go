package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	kerrors "github.com/PolarWolf314/casevault/internal/errors"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// DefaultSaltSize is the salt length used when none is configured.
	DefaultSaltSize = 32

	// DefaultIterations is the PBKDF2 work factor used when none is configured.
	DefaultIterations = 480_000

	minSaltSize = 16
)

// verificationPlaintext is sealed into every verification hash.
var verificationPlaintext = []byte("CASEVAULT_V1")

// GenerateSalt returns size bytes from the system CSPRNG.
func GenerateSalt(size int) ([]byte, error) {
	if size < minSaltSize {
		return nil, fmt.Errorf("salt size must be at least %d bytes, got %d", minSaltSize, size)
	}

	salt := make([]byte, size)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// DeriveKey stretches password into a 32-byte key with PBKDF2-HMAC-SHA256.
func DeriveKey(password string, salt []byte, iterations int) (*Key, error) {
	if len(salt) == 0 {
		return nil, fmt.Errorf("salt must not be empty")
	}
	if iterations <= 0 {
		return nil, fmt.Errorf("iterations must be positive, got %d", iterations)
	}

	raw := pbkdf2.Key([]byte(password), salt, iterations, KeySize, sha256.New)
	defer zero(raw)

	return NewKey(raw)
}

// DeriveEncodedKey derives the key and returns it URL-safe base64 encoded,
// the form Fernet implementations exchange keys in.
func DeriveEncodedKey(password string, salt []byte, iterations int) (string, error) {
	key, err := DeriveKey(password, salt, iterations)
	if err != nil {
		return "", err
	}
	defer key.Destroy()

	var encoded string
	err = key.Use(func(b []byte) error {
		encoded = base64.URLEncoding.EncodeToString(b)
		return nil
	})
	return encoded, err
}

// SplitTokenKey splits a 32-byte key into the token signing key (first half)
// and encryption key (second half).
func SplitTokenKey(key []byte) (signing, encryption []byte, err error) {
	if len(key) != KeySize {
		return nil, nil, fmt.Errorf("%w: expected %d bytes, got %d", kerrors.ErrInvalidKeyLength, KeySize, len(key))
	}
	return key[:KeySize/2], key[KeySize/2:], nil
}

// CreateVerificationHash seals the fixed verification plaintext under the
// key derived from password.
func CreateVerificationHash(password string, salt []byte, iterations int) ([]byte, error) {
	key, err := DeriveKey(password, salt, iterations)
	if err != nil {
		return nil, err
	}
	defer key.Destroy()

	return CreateVerificationHashWithKey(key)
}

// CreateVerificationHashWithKey is CreateVerificationHash for an already
// derived key.
func CreateVerificationHashWithKey(key *Key) ([]byte, error) {
	tc, err := NewTokenCipher(key)
	if err != nil {
		return nil, err
	}
	return tc.Encrypt(verificationPlaintext)
}

// VerifyPassword reports whether password, salt and iterations reproduce the
// key that sealed hash.
func VerifyPassword(password string, salt, hash []byte, iterations int) bool {
	key, err := DeriveKey(password, salt, iterations)
	if err != nil {
		return false
	}
	defer key.Destroy()

	return VerifyKey(key, hash)
}

// VerifyKey reports whether key sealed hash.
func VerifyKey(key *Key, hash []byte) bool {
	tc, err := NewTokenCipher(key)
	if err != nil {
		return false
	}

	plaintext, err := tc.Decrypt(hash)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(plaintext, verificationPlaintext) == 1
}
