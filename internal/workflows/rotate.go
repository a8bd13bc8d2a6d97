package workflows

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/PolarWolf314/casevault/internal/audit"
	kerrors "github.com/PolarWolf314/casevault/internal/errors"
	"github.com/PolarWolf314/casevault/internal/session"
	"github.com/PolarWolf314/casevault/internal/vault"
)

// RotateOptions configures the rotate workflow.
type RotateOptions struct {
	// Vault is the case whose password changes.
	Vault *vault.Manager

	// OldPassword must unlock the vault.
	OldPassword string

	// NewPassword protects the vault afterwards.
	NewPassword string

	// Progress is called once per artifact while staging.
	Progress ProgressFunc

	// afterStage runs once an artifact is staged. A non-nil error fails it.
	afterStage func(path string) error

	// afterPending runs once the pending sidecar is written. A non-nil error
	// stops the rotation there, as a crash would.
	afterPending func() error
}

// RotateResult contains the outcome of a rotate operation.
type RotateResult struct {
	// Rotated lists the artifacts re-encrypted under the new key, relative to
	// the case root.
	Rotated []string

	// Errors lists the artifacts that could not be staged. When non-empty
	// the rotation was abandoned and the vault is unchanged.
	Errors []FileError
}

// RotatePassword re-encrypts every artifact of the vault under a key derived
// from NewPassword.
//
// Every artifact is first re-encrypted to <artifact>.rotate with the same
// scheme it had and verified. If any artifact fails, the staged files are
// discarded and the vault is left exactly as it was. Otherwise the new
// sidecar is written to vault.meta.pending, which is the commit point: the
// staged artifacts are renamed into place, the pending sidecar replaces the
// old one and the session switches to the new key. A rotation interrupted
// after the commit point is finished by RecoverInterrupted.
//
// Returns ErrVaultNotFound if the case is not encrypted.
// Returns ErrRotationPending if an earlier rotation must be recovered first,
// including one that left staged files behind before its commit point.
// Returns ErrWeakPassword if NewPassword is too short.
// Returns ErrInvalidPassword if OldPassword is wrong.
// Returns ErrEncryptFailed, together with the result, if staging failed.
// Returns ErrVaultBusy if another workflow holds the case lock.
func RotatePassword(ctx context.Context, opts RotateOptions) (*RotateResult, error) {
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

	if !v.IsEncrypted() {
		return nil, fmt.Errorf("%w: %s", kerrors.ErrVaultNotFound, v.CaseDir())
	}
	if _, err := os.Stat(v.PendingMetadataPath()); err == nil {
		return nil, kerrors.ErrRotationPending
	}
	leftovers, err := rotationLeftovers(v)
	if err != nil {
		return nil, err
	}
	if len(leftovers) > 0 {
		return nil, fmt.Errorf("%w: %d files staged by an earlier rotation, e.g. %s",
			kerrors.ErrRotationPending, len(leftovers), relPath(v, leftovers[0]))
	}
	if err := v.CheckPassword(opts.NewPassword); err != nil {
		return nil, err
	}

	oldSession, err := v.Unlock(opts.OldPassword, session.UseDefaultTimeout)
	if err != nil {
		return nil, err
	}

	oldMeta, err := v.Metadata()
	if err != nil {
		return nil, err
	}

	newMeta, newKey, err := v.NewKeyMaterial(opts.NewPassword)
	if err != nil {
		return nil, err
	}
	newMeta.CreatedAt = oldMeta.CreatedAt

	newSession, err := v.Sessions().NewSession(v.CaseDir(), newKey, newMeta.Salt, v.Config().SessionTimeout())
	if err != nil {
		newKey.Destroy()
		return nil, err
	}

	artifacts, err := v.FindFiles(vault.Artifacts)
	if err != nil {
		v.Sessions().Discard(newSession)
		return nil, err
	}
	log.Debugf("Rotating %d artifacts in %s", len(artifacts), v.CaseDir())

	result := &RotateResult{}
	staged := make([]string, 0, len(artifacts))

	for i, path := range artifacts {
		if err := ctx.Err(); err != nil {
			discardRotation(v, newSession, staged)
			return nil, err
		}

		rel := relPath(v, path)
		opts.Progress.report("Re-encrypting "+rel, i+1, len(artifacts))

		dst := path + vault.RotateSuffix
		if err := stageRotation(ctx, v, oldSession, newSession, path, dst, opts.afterStage); err != nil {
			os.Remove(dst)
			if ctx.Err() != nil {
				discardRotation(v, newSession, staged)
				return nil, ctx.Err()
			}
			result.Errors = append(result.Errors, FileError{Path: rel, Err: err})
			continue
		}
		staged = append(staged, dst)
		result.Rotated = append(result.Rotated, rel)
	}

	if len(result.Errors) > 0 {
		discardRotation(v, newSession, staged)
		result.Rotated = nil
		err := fmt.Errorf("%w: %d of %d files could not be re-encrypted, the vault is unchanged",
			kerrors.ErrEncryptFailed, len(result.Errors), len(artifacts))
		logRotate(v, oldSession, result, err)
		return result, err
	}

	if err := vault.WriteMetadata(v.PendingMetadataPath(), newMeta); err != nil {
		discardRotation(v, newSession, staged)
		return nil, err
	}

	if opts.afterPending != nil {
		if err := opts.afterPending(); err != nil {
			v.Sessions().Discard(newSession)
			return nil, err
		}
	}

	if _, err := commitRotation(v, staged); err != nil {
		v.Sessions().Discard(newSession)
		return nil, err
	}
	v.Sessions().Install(newSession)

	log.Infof("Rotated the password of %s (%d files re-encrypted)", v.CaseDir(), len(result.Rotated))
	logRotate(v, newSession, result, nil)
	return result, nil
}

func stageRotation(ctx context.Context, v *vault.Manager, from, to *session.Session, src, dst string, afterStage func(string) error) error {
	if _, err := v.ReencryptFile(ctx, from, to, src, dst); err != nil {
		return err
	}
	if _, err := v.VerifyArtifactWithSession(ctx, to, dst, true); err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}
	if afterStage != nil {
		return afterStage(src)
	}
	return nil
}

func discardRotation(v *vault.Manager, newSession *session.Session, staged []string) {
	for _, path := range staged {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			v.Logger().Warnf("Failed to remove staged file %s: %v", path, err)
		}
	}
	v.Sessions().Discard(newSession)
}

// rotationLeftovers returns the rotation staging files present in the case.
func rotationLeftovers(v *vault.Manager) ([]string, error) {
	staged, err := v.FindFiles(vault.Staged)
	if err != nil {
		return nil, err
	}

	var leftovers []string
	for _, path := range staged {
		if strings.HasSuffix(path, vault.RotateSuffix) {
			leftovers = append(leftovers, path)
		}
	}
	return leftovers, nil
}

// commitRotation moves the staged rotation artifacts into place and promotes
// the pending sidecar. A nil staged list commits every rotation staging file
// in the case, which is how an interrupted commit is finished.
func commitRotation(v *vault.Manager, staged []string) (int, error) {
	if staged == nil {
		var err error
		if staged, err = rotationLeftovers(v); err != nil {
			return 0, err
		}
	}

	committed := 0
	for _, path := range staged {
		artifact := strings.TrimSuffix(path, vault.RotateSuffix)
		if err := os.Rename(path, artifact); err != nil {
			return committed, fmt.Errorf("failed to commit %s: %w", relPath(v, artifact), err)
		}
		committed++
	}

	if err := os.Rename(v.PendingMetadataPath(), v.MetadataPath()); err != nil {
		return committed, fmt.Errorf("failed to promote vault metadata: %w", err)
	}
	if _, err := v.LoadMetadata(); err != nil {
		return committed, err
	}
	return committed, nil
}

func logRotate(v *vault.Manager, s *session.Session, result *RotateResult, err error) {
	entry := audit.NewEntry("rotate")
	entry.SessionID = s.ID
	entry.Files = result.Rotated
	entry.FilesCount = len(result.Rotated)
	entry.FailedCount = len(result.Errors)
	entry.Error = errorString(err)
	audit.Log(v.AuditPath(), entry)
}
