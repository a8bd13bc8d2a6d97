package vault

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/PolarWolf314/casevault/internal/configs"
	kerrors "github.com/PolarWolf314/casevault/internal/errors"
	logger "github.com/PolarWolf314/casevault/internal/logging"
	"github.com/PolarWolf314/casevault/internal/secrets"
	"github.com/PolarWolf314/casevault/internal/session"
)

// Manager orchestrates encryption for one case directory.
type Manager struct {
	caseDir  string
	sessions *session.Manager
	cfg      configs.VaultConfig
	policy   *Policy
	log      logger.Logger

	mu   sync.Mutex
	meta *Metadata
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger for vault operations.
func WithLogger(log logger.Logger) Option {
	return func(m *Manager) {
		m.log = log
	}
}

// New returns a Manager for caseDir that keeps its keys in sessions.
func New(caseDir string, sessions *session.Manager, cfg configs.VaultConfig, opts ...Option) (*Manager, error) {
	if sessions == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid vault configuration: %w", err)
	}

	dir, err := session.CanonicalPath(caseDir)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		caseDir:  dir,
		sessions: sessions,
		cfg:      cfg,
		policy:   NewPolicy(cfg),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// CaseDir returns the canonical case directory.
func (m *Manager) CaseDir() string { return m.caseDir }

func (m *Manager) Config() configs.VaultConfig { return m.cfg }
func (m *Manager) Sessions() *session.Manager  { return m.sessions }
func (m *Manager) Policy() *Policy             { return m.policy }
func (m *Manager) Logger() logger.Logger       { return m.log }

func (m *Manager) MetadataPath() string { return filepath.Join(m.caseDir, m.cfg.MetadataFile) }
func (m *Manager) LockPath() string     { return filepath.Join(m.caseDir, m.cfg.LockFile) }
func (m *Manager) AuditPath() string    { return filepath.Join(m.caseDir, m.cfg.AuditFile) }

// PendingMetadataPath is where rotation stages the next sidecar.
func (m *Manager) PendingMetadataPath() string { return m.MetadataPath() + PendingSuffix }

// FormatFor returns the scheme used for a plaintext of size bytes.
func (m *Manager) FormatFor(size int64) secrets.Format {
	if size < m.cfg.StreamingThreshold {
		return secrets.FormatToken
	}
	return secrets.FormatStream
}

// IsEncrypted reports whether the case has a metadata sidecar.
func (m *Manager) IsEncrypted() bool {
	_, err := os.Stat(m.MetadataPath())
	return err == nil
}

// Metadata returns the cached sidecar, loading it on first use.
func (m *Manager) Metadata() (*Metadata, error) {
	m.mu.Lock()
	meta := m.meta
	m.mu.Unlock()

	if meta != nil {
		return meta, nil
	}
	return m.LoadMetadata()
}

// LoadMetadata rereads the sidecar from disk.
func (m *Manager) LoadMetadata() (*Metadata, error) {
	meta, err := ReadMetadata(m.MetadataPath())
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.meta = meta
	m.mu.Unlock()

	return meta, nil
}

// SaveMetadata writes the sidecar and updates the cache.
func (m *Manager) SaveMetadata(meta *Metadata) error {
	if err := WriteMetadata(m.MetadataPath(), meta); err != nil {
		return err
	}

	m.mu.Lock()
	m.meta = meta
	m.mu.Unlock()

	return nil
}

// RemoveMetadata deletes the sidecar and locks the vault. The case is no
// longer encrypted afterwards.
func (m *Manager) RemoveMetadata() error {
	if err := os.Remove(m.MetadataPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove vault metadata: %w", err)
	}

	m.mu.Lock()
	m.meta = nil
	m.mu.Unlock()

	m.Lock()
	return nil
}

// CheckPassword returns ErrWeakPassword if password is too short.
func (m *Manager) CheckPassword(password string) error {
	if n := utf8.RuneCountInString(password); n < m.cfg.MinPasswordLength {
		return fmt.Errorf("%w: must be at least %d characters, got %d", kerrors.ErrWeakPassword, m.cfg.MinPasswordLength, n)
	}
	return nil
}

// NewKeyMaterial derives a key under a fresh salt and returns it with the
// metadata that unlocks it. Nothing is written.
func (m *Manager) NewKeyMaterial(password string) (*Metadata, *secrets.Key, error) {
	salt, err := secrets.GenerateSalt(m.cfg.SaltSize)
	if err != nil {
		return nil, nil, err
	}

	key, err := secrets.DeriveKey(password, salt, m.cfg.PBKDF2Iterations)
	if err != nil {
		return nil, nil, err
	}

	hash, err := secrets.CreateVerificationHashWithKey(key)
	if err != nil {
		key.Destroy()
		return nil, nil, err
	}

	return NewMetadata(salt, hash, m.cfg.PBKDF2Iterations, m.sessions.Now()), key, nil
}

// Initialize turns the case into a vault protected by password and unlocks
// it. It returns ErrVaultAlreadyExists if the case is already encrypted and
// ErrWeakPassword if password is too short.
func (m *Manager) Initialize(password string) (*Metadata, error) {
	if m.IsEncrypted() {
		return nil, fmt.Errorf("%w: %s", kerrors.ErrVaultAlreadyExists, m.caseDir)
	}
	if err := m.CheckPassword(password); err != nil {
		return nil, err
	}

	meta, key, err := m.NewKeyMaterial(password)
	if err != nil {
		return nil, err
	}

	if err := m.SaveMetadata(meta); err != nil {
		key.Destroy()
		return nil, err
	}

	if _, err := m.sessions.Register(m.caseDir, key, meta.Salt, m.cfg.SessionTimeout()); err != nil {
		key.Destroy()
		return nil, err
	}

	m.log.Infof("Initialized vault for %s", m.caseDir)
	return meta, nil
}

// VerifyPassword reports whether password unlocks the vault. It has no side
// effects.
func (m *Manager) VerifyPassword(password string) bool {
	meta, err := m.Metadata()
	if err != nil {
		return false
	}
	return secrets.VerifyPassword(password, meta.Salt, meta.VerificationHash, meta.Iterations)
}

// Unlock verifies password and installs a session, replacing any existing
// one. A negative timeout selects the configured session timeout. It returns
// ErrVaultNotFound for an unencrypted case and ErrInvalidPassword on a
// mismatch, in which case no session is created.
func (m *Manager) Unlock(password string, timeout time.Duration) (*session.Session, error) {
	if !m.IsEncrypted() {
		return nil, fmt.Errorf("%w: %s", kerrors.ErrVaultNotFound, m.caseDir)
	}

	meta, err := m.LoadMetadata()
	if err != nil {
		return nil, err
	}

	key, err := secrets.DeriveKey(password, meta.Salt, meta.Iterations)
	if err != nil {
		return nil, err
	}

	if !secrets.VerifyKey(key, meta.VerificationHash) {
		key.Destroy()
		return nil, fmt.Errorf("%w: %s", kerrors.ErrInvalidPassword, m.caseDir)
	}

	if timeout < 0 {
		timeout = m.cfg.SessionTimeout()
	}

	s, err := m.sessions.Register(m.caseDir, key, meta.Salt, timeout)
	if err != nil {
		key.Destroy()
		return nil, err
	}
	return s, nil
}

// Lock ends the vault's session. It returns false if it was already locked.
func (m *Manager) Lock() bool {
	return m.sessions.Lock(m.caseDir)
}

// IsUnlocked reports whether the vault has a live session.
func (m *Manager) IsUnlocked() bool {
	return m.sessions.IsUnlocked(m.caseDir)
}

// Session returns the vault's live session, or ErrVaultLocked or
// ErrSessionExpired.
func (m *Manager) Session() (*session.Session, error) {
	return m.sessions.Require(m.caseDir)
}

// EncryptedPath returns the artifact path for a plaintext path.
func (m *Manager) EncryptedPath(path string) string {
	return path + m.cfg.EncryptedExtension
}

// DecryptedPath strips the encrypted extension from an artifact path.
func (m *Manager) DecryptedPath(path string) (string, error) {
	if !m.policy.IsArtifact(path) {
		return "", fmt.Errorf("%s does not end in %s", path, m.cfg.EncryptedExtension)
	}
	return strings.TrimSuffix(path, m.cfg.EncryptedExtension), nil
}

// ShouldEncryptFile applies the encryption policy to path, which may be
// absolute or relative to the case root.
func (m *Manager) ShouldEncryptFile(path string) bool {
	rel := path
	if filepath.IsAbs(path) {
		var err error
		if rel, err = filepath.Rel(m.caseDir, path); err != nil {
			return false
		}
	}
	return m.policy.ShouldEncrypt(rel)
}

func (m *Manager) tokenCipher(s *session.Session) (*secrets.TokenCipher, error) {
	return secrets.NewTokenCipher(s.Key())
}

func (m *Manager) streamCipher(s *session.Session) (*secrets.StreamCipher, error) {
	return secrets.NewStreamCipher(s.Key(), m.cfg.ChunkSize)
}

// cryptoError tags err with sentinel unless it already carries a kind the
// caller should see unchanged.
func cryptoError(sentinel error, path string, err error) error {
	for _, kind := range []error{
		sentinel,
		kerrors.ErrVaultLocked,
		kerrors.ErrUnknownFormat,
		kerrors.ErrInvalidKeyLength,
		context.Canceled,
		context.DeadlineExceeded,
	} {
		if errors.Is(err, kind) {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return fmt.Errorf("%w: %s: %w", sentinel, path, err)
}

func statSource(path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", kerrors.ErrFileNotFound, path)
	}
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file", path)
	}
	return info, nil
}
