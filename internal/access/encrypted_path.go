package access

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	kerrors "github.com/PolarWolf314/casevault/internal/errors"
	"github.com/PolarWolf314/casevault/internal/session"
	"github.com/PolarWolf314/casevault/internal/vault"
)

const tempPrefix = "casevault-"

// EncryptedPath is an artifact read through a vault session.
type EncryptedPath struct {
	artifact string
	original string
	vault    *vault.Manager
	session  *session.Session
	tempDir  string

	mu   sync.Mutex
	temp string
}

// NewEncryptedPath wraps artifact for reading with s. Temporary files go to
// tempDir, or the system default when it is empty.
func NewEncryptedPath(v *vault.Manager, s *session.Session, artifact, tempDir string) (*EncryptedPath, error) {
	original, err := v.DecryptedPath(artifact)
	if err != nil {
		return nil, err
	}

	p := &EncryptedPath{
		artifact: artifact,
		original: original,
		vault:    v,
		session:  s,
		tempDir:  tempDir,
	}
	runtime.SetFinalizer(p, func(p *EncryptedPath) {
		_ = p.Cleanup()
	})
	return p, nil
}

func (p *EncryptedPath) String() string { return p.artifact }
func (p *EncryptedPath) Name() string   { return filepath.Base(p.original) }
func (p *EncryptedPath) Ext() string    { return filepath.Ext(p.original) }
func (p *EncryptedPath) Dir() string    { return filepath.Dir(p.original) }

func (p *EncryptedPath) Stem() string {
	return strings.TrimSuffix(p.Name(), p.Ext())
}

// Exists reports whether the artifact exists.
func (p *EncryptedPath) Exists() bool {
	_, err := os.Stat(p.artifact)
	return err == nil
}

// Stat describes the artifact, not the plaintext.
func (p *EncryptedPath) Stat() (os.FileInfo, error) {
	return os.Stat(p.artifact)
}

// ReadBytes decrypts the whole file into memory.
func (p *EncryptedPath) ReadBytes(ctx context.Context) ([]byte, error) {
	return p.vault.DecryptFileToMemoryWithSession(ctx, p.session, p.artifact)
}

// ReadText is ReadBytes as a string.
func (p *EncryptedPath) ReadText(ctx context.Context) (string, error) {
	b, err := p.ReadBytes(ctx)
	return string(b), err
}

// Open returns a reader that decrypts incrementally.
func (p *EncryptedPath) Open(ctx context.Context) (io.ReadCloser, error) {
	return p.vault.OpenReaderWithSession(ctx, p.session, p.artifact)
}

// TempPath returns the materialized path, or "" if there is none.
func (p *EncryptedPath) TempPath() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.temp
}

// Materialize decrypts into a private temporary file carrying the original
// extension and returns its path. The file is created once and reused until
// Cleanup.
func (p *EncryptedPath) Materialize(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.temp != "" {
		if _, err := os.Stat(p.temp); err == nil {
			return p.temp, nil
		}
	}

	if !p.Exists() {
		return "", fmt.Errorf("%w: %s", kerrors.ErrFileNotFound, p.artifact)
	}

	f, err := os.CreateTemp(p.tempDir, tempPrefix+"*"+p.Ext())
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	temp := f.Name()
	if err := f.Close(); err != nil {
		os.Remove(temp)
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}

	if _, err := p.vault.DecryptFileWithSession(ctx, p.session, p.artifact, temp); err != nil {
		os.Remove(temp)
		return "", err
	}

	p.temp = temp
	return temp, nil
}

// Cleanup removes the materialized file, if any. It is safe to call more
// than once.
func (p *EncryptedPath) Cleanup() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.temp == "" {
		return nil
	}

	err := os.Remove(p.temp)
	p.temp = ""
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove temporary file: %w", err)
	}
	return nil
}
