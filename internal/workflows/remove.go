package workflows

import (
	"context"
	"fmt"
	"os"

	"github.com/PolarWolf314/casevault/internal/audit"
	kerrors "github.com/PolarWolf314/casevault/internal/errors"
	"github.com/PolarWolf314/casevault/internal/vault"
)

// RemoveOptions configures the remove encryption workflow.
type RemoveOptions struct {
	// Vault is the case to decrypt.
	Vault *vault.Manager

	// Password unlocks the vault. If empty, the live session is used.
	Password string

	// Progress is called once per artifact.
	Progress ProgressFunc
}

// RemoveResult contains the outcome of a remove encryption operation.
type RemoveResult struct {
	// Decrypted lists the files restored to plaintext, relative to the case root.
	Decrypted []string

	// BytesDecrypted is the total plaintext size restored.
	BytesDecrypted int64

	// Errors lists the artifacts that could not be decrypted.
	Errors []FileError

	// VaultRemoved indicates the sidecar was deleted and the case is no
	// longer encrypted.
	VaultRemoved bool
}

// RemoveEncryption decrypts every artifact in place, deletes the ciphertexts
// and finally the vault sidecar, and locks the session. If any artifact
// fails, the sidecar is kept so the remaining artifacts stay recoverable and
// ErrDecryptFailed is returned together with the result.
//
// Returns ErrVaultNotFound if the case is not encrypted.
// Returns ErrInvalidPassword if password is wrong.
// Returns ErrVaultBusy if another workflow holds the case lock.
func RemoveEncryption(ctx context.Context, opts RemoveOptions) (*RemoveResult, error) {
	v := opts.Vault
	if v == nil {
		return nil, errNoVault
	}
	log := v.Logger()

	lock, err := acquireLock(v)
	if err != nil {
		return nil, err
	}
	defer releaseLock(v, lock)

	s, err := openSession(v, opts.Password)
	if err != nil {
		return nil, err
	}

	artifacts, err := v.FindFiles(vault.Artifacts)
	if err != nil {
		return nil, err
	}

	result := &RemoveResult{}

	for i, path := range artifacts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rel := relPath(v, path)
		opts.Progress.report("Decrypting "+rel, i+1, len(artifacts))

		plain, err := v.DecryptFileWithSession(ctx, s, path, "")
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warnf("Failed to decrypt %s: %v", rel, err)
			result.Errors = append(result.Errors, FileError{Path: rel, Err: err})
			continue
		}

		if err := os.Remove(path); err != nil {
			log.Warnf("Decrypted %s but could not remove the artifact: %v", rel, err)
		}

		result.Decrypted = append(result.Decrypted, relPath(v, plain))
		if info, err := os.Stat(plain); err == nil {
			result.BytesDecrypted += info.Size()
		}
	}

	entry := audit.NewEntry("remove-encryption")
	entry.SessionID = s.ID
	entry.FilesCount = len(result.Decrypted)
	entry.FailedCount = len(result.Errors)
	entry.Bytes = result.BytesDecrypted

	if len(result.Errors) > 0 {
		err := fmt.Errorf("%w: %d files could not be decrypted, the vault was kept", kerrors.ErrDecryptFailed, len(result.Errors))
		entry.Error = err.Error()
		audit.Log(v.AuditPath(), entry)
		return result, err
	}

	if err := v.RemoveMetadata(); err != nil {
		return result, err
	}
	result.VaultRemoved = true

	log.Infof("Removed encryption from %s (%d files decrypted)", v.CaseDir(), len(result.Decrypted))
	audit.Log(v.AuditPath(), entry)
	return result, nil
}
