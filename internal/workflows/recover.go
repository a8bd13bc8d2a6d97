package workflows

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/PolarWolf314/casevault/internal/audit"
	"github.com/PolarWolf314/casevault/internal/vault"
)

// RecoverOptions configures the recover workflow.
type RecoverOptions struct {
	// Vault is the case to recover.
	Vault *vault.Manager
}

// RecoverResult contains the outcome of a recover operation.
type RecoverResult struct {
	// RotationCompleted indicates an interrupted rotation was finished.
	RotationCompleted bool

	// Committed is the number of staged rotation artifacts moved into place.
	Committed int

	// Removed lists the abandoned staging files deleted, relative to the
	// case root.
	Removed []string
}

// RecoverInterrupted brings a case back to a consistent state after an
// interrupted EncryptCase or RotatePassword. No password is needed.
//
// If vault.meta.pending exists the rotation had reached its commit point, so
// its staged artifacts are moved into place and the pending sidecar is
// promoted. The vault is locked afterwards and must be unlocked with the new
// password. Any remaining .partial and .rotate files belong to work that
// never committed and are deleted; the files they were made from are still
// intact.
//
// Returns ErrVaultBusy if another workflow holds the case lock.
func RecoverInterrupted(ctx context.Context, opts RecoverOptions) (*RecoverResult, error) {
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

	result := &RecoverResult{}

	if _, err := os.Stat(v.PendingMetadataPath()); err == nil {
		if _, err := vault.ReadMetadata(v.PendingMetadataPath()); err != nil {
			return nil, fmt.Errorf("pending rotation cannot be completed: %w", err)
		}

		committed, err := commitRotation(v, nil)
		if err != nil {
			return nil, err
		}
		result.RotationCompleted = true
		result.Committed = committed

		// The live key, if any, belongs to the old password.
		v.Lock()
		log.Infof("Completed interrupted password rotation of %s (%d files)", v.CaseDir(), committed)
	}

	staged, err := v.FindFiles(vault.Staged)
	if err != nil {
		return nil, err
	}

	for _, path := range staged {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !strings.HasSuffix(path, vault.PartialSuffix) && !strings.HasSuffix(path, vault.RotateSuffix) {
			continue
		}
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("failed to remove %s: %w", relPath(v, path), err)
		}
		result.Removed = append(result.Removed, relPath(v, path))
	}

	if len(result.Removed) > 0 {
		log.Infof("Removed %d abandoned staging files", len(result.Removed))
	}

	if result.RotationCompleted || len(result.Removed) > 0 {
		entry := audit.NewEntry("recover")
		entry.Files = result.Removed
		entry.FilesCount = result.Committed
		entry.SkippedCount = len(result.Removed)
		audit.Log(v.AuditPath(), entry)
	}

	return result, nil
}
