package workflows

import (
	"context"
	"fmt"
	"os"

	kerrors "github.com/PolarWolf314/casevault/internal/errors"
	"github.com/PolarWolf314/casevault/internal/vault"
)

// EncryptFilesOptions configures the encrypt files workflow.
type EncryptFilesOptions struct {
	// Vault is an encrypted case.
	Vault *vault.Manager

	// Password unlocks the vault. If empty, the live session is used.
	Password string

	// FilePatterns selects files, directories or doublestar globs relative to
	// the case root. If empty, every plaintext file the policy selects is
	// encrypted.
	FilePatterns []string

	// DryRun lists the files that would be encrypted without making changes.
	// It needs no password.
	DryRun bool

	// Progress is called once per file while staging.
	Progress ProgressFunc
}

// EncryptFiles encrypts plaintext files added to an already encrypted case,
// such as new evidence. Files are staged, verified and committed the same
// way as in EncryptCase, and a file that fails stays plaintext. Cancelling
// discards the staged files and leaves every original in place.
//
// Returns ErrVaultNotFound if the case is not encrypted.
// Returns ErrInvalidPassword if password is wrong.
// Returns ErrNoFilesFound if FilePatterns match nothing.
// Returns ErrVaultBusy if another workflow holds the case lock.
func EncryptFiles(ctx context.Context, opts EncryptFilesOptions) (*EncryptResult, error) {
	v := opts.Vault
	if v == nil {
		return nil, errNoVault
	}

	lock, err := acquireLock(v)
	if err != nil {
		return nil, err
	}
	defer releaseLock(v, lock)

	if !v.IsEncrypted() {
		return nil, fmt.Errorf("%w: %s", kerrors.ErrVaultNotFound, v.CaseDir())
	}

	targets, err := v.ResolveFiles(opts.FilePatterns, vault.Targets)
	if err != nil {
		return nil, err
	}
	if len(opts.FilePatterns) == 0 {
		if targets, err = v.FindFiles(vault.Targets); err != nil {
			return nil, err
		}
	}

	result := &EncryptResult{
		CaseDir: v.CaseDir(),
		DryRun:  opts.DryRun,
	}

	if opts.DryRun {
		result.Encrypted = relPaths(v, targets)
		return result, nil
	}

	s, err := openSession(v, opts.Password)
	if err != nil {
		return nil, err
	}

	staged, err := stageTargets(ctx, v, s, targets, opts.Progress, nil, result)
	if err != nil {
		for _, file := range staged {
			os.Remove(file.staged)
		}
		logEncrypt(v, "encrypt", s, result, err)
		return nil, err
	}

	commitStaged(v, staged, result)

	v.Logger().Infof("Encrypted %d files (%d bytes) in %s", len(result.Encrypted), result.BytesEncrypted, v.CaseDir())
	logEncrypt(v, "encrypt", s, result, nil)
	return result, nil
}
