package vault

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	kerrors "github.com/PolarWolf314/casevault/internal/errors"

	"github.com/natefinch/atomic"
)

const (
	MetadataVersion = 1
	AlgorithmName   = "AES-256-GCM"
	KDFName         = "PBKDF2-HMAC-SHA256"
)

// Metadata is the plaintext sidecar describing how to unlock a vault.
type Metadata struct {
	Version          int       `json:"version"`
	Algorithm        string    `json:"algorithm"`
	KeyDerivation    string    `json:"key_derivation"`
	Iterations       int       `json:"iterations"`
	Salt             []byte    `json:"salt"`
	VerificationHash []byte    `json:"verification_hash"`
	CreatedAt        time.Time `json:"created_at"`
}

// NewMetadata returns metadata for a freshly keyed vault.
func NewMetadata(salt, verificationHash []byte, iterations int, createdAt time.Time) *Metadata {
	return &Metadata{
		Version:          MetadataVersion,
		Algorithm:        AlgorithmName,
		KeyDerivation:    KDFName,
		Iterations:       iterations,
		Salt:             salt,
		VerificationHash: verificationHash,
		CreatedAt:        createdAt.UTC(),
	}
}

func (m *Metadata) validate() error {
	switch {
	case m.Version != MetadataVersion:
		return fmt.Errorf("unsupported version %d", m.Version)
	case m.KeyDerivation != KDFName:
		return fmt.Errorf("unsupported key derivation %q", m.KeyDerivation)
	case m.Iterations <= 0:
		return fmt.Errorf("invalid iteration count %d", m.Iterations)
	case len(m.Salt) == 0:
		return fmt.Errorf("missing salt")
	case len(m.VerificationHash) == 0:
		return fmt.Errorf("missing verification hash")
	}
	return nil
}

// ReadMetadata loads and validates the sidecar at path. A missing file is
// ErrVaultNotFound; anything unparsable is ErrVaultCorrupted.
func ReadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", kerrors.ErrVaultNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read vault metadata: %w", err)
	}

	// Fill unset fields the way version 1 sidecars were written.
	m := &Metadata{
		Version:       MetadataVersion,
		Algorithm:     AlgorithmName,
		KeyDerivation: KDFName,
	}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", kerrors.ErrVaultCorrupted, path, err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", kerrors.ErrVaultCorrupted, path, err)
	}

	return m, nil
}

// WriteMetadata atomically replaces the sidecar at path.
func WriteMetadata(path string, m *Metadata) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode vault metadata: %w", err)
	}
	data = append(data, '\n')

	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write vault metadata: %w", err)
	}
	return nil
}
