package workflows

import (
	"errors"
	"fmt"
	"path/filepath"

	kerrors "github.com/PolarWolf314/casevault/internal/errors"
	"github.com/PolarWolf314/casevault/internal/session"
	"github.com/PolarWolf314/casevault/internal/vault"
)

// ProgressFunc receives a message for each file as it is processed, with
// its 1-based position among total.
type ProgressFunc func(message string, current, total int)

func (p ProgressFunc) report(message string, current, total int) {
	if p != nil {
		p(message, current, total)
	}
}

// FileError records why a single file could not be processed.
type FileError struct {
	// Path is relative to the case root.
	Path string
	Err  error
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e FileError) Unwrap() error {
	return e.Err
}

var errNoVault = errors.New("vault manager is required")

// openSession unlocks v with password, or reuses its live session when no
// password is given. It returns ErrVaultNotFound if the case is not
// encrypted.
func openSession(v *vault.Manager, password string) (*session.Session, error) {
	if !v.IsEncrypted() {
		return nil, fmt.Errorf("%w: %s", kerrors.ErrVaultNotFound, v.CaseDir())
	}
	if password == "" {
		return v.Session()
	}
	return v.Unlock(password, session.UseDefaultTimeout)
}

// relPath returns path relative to the case root for results and the audit
// log, falling back to path itself.
func relPath(v *vault.Manager, path string) string {
	rel, err := filepath.Rel(v.CaseDir(), path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

func relPaths(v *vault.Manager, paths []string) []string {
	rels := make([]string, len(paths))
	for i, p := range paths {
		rels[i] = relPath(v, p)
	}
	return rels
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
