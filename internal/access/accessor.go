package access

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	kerrors "github.com/PolarWolf314/casevault/internal/errors"
	logger "github.com/PolarWolf314/casevault/internal/logging"
	"github.com/PolarWolf314/casevault/internal/session"
	"github.com/PolarWolf314/casevault/internal/vault"

	"github.com/natefinch/atomic"
)

// Options configures an Accessor.
type Options struct {
	// Session is used instead of looking one up.
	Session *session.Session

	// Password unlocks the vault when it has no live session.
	Password string

	// TempDir holds materialized files. Empty means the system default.
	TempDir string

	Logger logger.Logger
}

// Accessor reads and writes the files of one case. Close it to delete any
// plaintext it materialized.
type Accessor struct {
	vault   *vault.Manager
	session *session.Session
	opts    Options

	mu     sync.Mutex
	paths  []*EncryptedPath
	closed bool
}

// Open resolves the encryption state of the case managed by v. For an
// encrypted case it uses opts.Session, the vault's live session, or unlocks
// with opts.Password, in that order; otherwise it returns ErrVaultLocked or
// ErrSessionExpired.
func Open(ctx context.Context, v *vault.Manager, opts Options) (*Accessor, error) {
	a := &Accessor{vault: v, opts: opts}

	if !v.IsEncrypted() {
		return a, nil
	}

	if opts.Session != nil {
		a.session = opts.Session
		return a, nil
	}

	s, err := v.Session()
	if err == nil {
		a.session = s
		return a, nil
	}
	if opts.Password == "" {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s, err = v.Unlock(opts.Password, session.UseDefaultTimeout)
	if err != nil {
		return nil, err
	}
	opts.Logger.Debugf("Unlocked %s for file access", v.CaseDir())

	a.session = s
	return a, nil
}

// With opens an Accessor, runs fn and closes the Accessor on every exit
// path. A panic in fn still deletes materialized files before propagating.
func With(ctx context.Context, v *vault.Manager, opts Options, fn func(*Accessor) error) (err error) {
	a, err := Open(ctx, v, opts)
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := a.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	return fn(a)
}

// IsEncrypted reports whether the case was encrypted when the Accessor
// opened.
func (a *Accessor) IsEncrypted() bool {
	return a.session != nil
}

// CaseDir returns the case directory.
func (a *Accessor) CaseDir() string {
	return a.vault.CaseDir()
}

func (a *Accessor) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(a.vault.CaseDir(), path)
}

// GetFilePath returns the file at path, relative to the case root unless
// absolute. Unencrypted cases, and plaintext files that were never
// encrypted, yield a PlainPath; everything else yields an EncryptedPath
// tracked for cleanup.
func (a *Accessor) GetFilePath(path string) (File, error) {
	path = a.resolve(path)

	if !a.IsEncrypted() {
		return PlainPath(path), nil
	}

	artifact := path
	if !a.vault.Policy().IsArtifact(path) {
		artifact = a.vault.EncryptedPath(path)
		if _, err := os.Stat(artifact); os.IsNotExist(err) {
			if _, err := os.Stat(path); err == nil {
				return PlainPath(path), nil
			}
		}
	}

	p, err := a.track(artifact)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (a *Accessor) track(artifact string) (*EncryptedPath, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil, fmt.Errorf("accessor for %s is closed", a.vault.CaseDir())
	}

	p, err := NewEncryptedPath(a.vault, a.session, artifact, a.opts.TempDir)
	if err != nil {
		return nil, err
	}
	a.paths = append(a.paths, p)
	return p, nil
}

// LoadJSON decodes the JSON file at path into v, decrypting it if an
// artifact exists.
func (a *Accessor) LoadJSON(ctx context.Context, path string, v any) error {
	path = a.resolve(path)

	if a.IsEncrypted() {
		artifact := path
		if !a.vault.Policy().IsArtifact(path) {
			artifact = a.vault.EncryptedPath(path)
		}
		if _, err := os.Stat(artifact); err == nil {
			return a.vault.DecryptJSONWithSession(ctx, a.session, artifact, v)
		}
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", kerrors.ErrFileNotFound, path)
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// SaveJSON writes v as JSON to path, encrypted when the case is, and returns
// the path written. A stale plaintext copy is removed after an encrypted save.
func (a *Accessor) SaveJSON(v any, path string) (string, error) {
	path = a.resolve(path)

	if !a.IsEncrypted() {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to encode %s: %w", path, err)
		}
		if err := atomic.WriteFile(path, bytes.NewReader(append(data, '\n'))); err != nil {
			return "", fmt.Errorf("failed to write %s: %w", path, err)
		}
		return path, nil
	}

	artifact := path
	if !a.vault.Policy().IsArtifact(path) {
		artifact = a.vault.EncryptedPath(path)
	}
	if err := a.vault.EncryptJSONWithSession(a.session, v, artifact); err != nil {
		return "", err
	}

	if artifact != path {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to remove plaintext %s: %w", path, err)
		}
	}
	return artifact, nil
}

// Close deletes every file materialized through the Accessor. Further calls
// to GetFilePath fail.
func (a *Accessor) Close() error {
	a.mu.Lock()
	paths := a.paths
	a.paths = nil
	a.closed = true
	a.mu.Unlock()

	var errs []error
	for _, p := range paths {
		if err := p.Cleanup(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// EvidencePath returns the file at path for a one-off read outside an
// Accessor scope. It uses s, or the vault's live session when s is nil. The
// caller must Cleanup the result.
func EvidencePath(v *vault.Manager, s *session.Session, path string) (File, error) {
	if !v.IsEncrypted() {
		return PlainPath(path), nil
	}

	if s == nil {
		var err error
		if s, err = v.Session(); err != nil {
			return nil, err
		}
	}

	artifact := v.EncryptedPath(path)
	if _, err := os.Stat(artifact); err != nil {
		return PlainPath(path), nil
	}

	p, err := NewEncryptedPath(v, s, artifact, "")
	if err != nil {
		return nil, err
	}
	return p, nil
}
