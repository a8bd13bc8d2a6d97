package workflows

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/PolarWolf314/casevault/internal/audit"
	kerrors "github.com/PolarWolf314/casevault/internal/errors"
	"github.com/PolarWolf314/casevault/internal/session"
	"github.com/PolarWolf314/casevault/internal/vault"
)

const caseFileName = "case.json"

// EncryptCaseOptions configures the encrypt case workflow.
type EncryptCaseOptions struct {
	// Vault is the case to encrypt.
	Vault *vault.Manager

	// Password protects the new vault.
	Password string

	// DryRun lists the files that would be encrypted without making changes.
	// It needs no password.
	DryRun bool

	// Progress is called once per file while staging.
	Progress ProgressFunc

	// afterStage runs once a file is staged and verified. A non-nil error
	// fails that file.
	afterStage func(path string) error
}

// EncryptResult contains the outcome of an EncryptCase or EncryptFiles
// operation.
type EncryptResult struct {
	// CaseDir is the canonical case directory.
	CaseDir string

	// Encrypted lists the files now stored as artifacts, relative to the case root.
	Encrypted []string

	// Skipped lists the files left plaintext because they failed.
	Skipped []string

	// Errors explains each skipped file.
	Errors []FileError

	// BytesEncrypted is the total plaintext size of the encrypted files.
	BytesEncrypted int64

	// DryRun indicates whether this was a dry-run (no files modified).
	DryRun bool
}

type stagedFile struct {
	src    string
	staged string
	size   int64
}

// EncryptCase turns an unencrypted case into a vault protected by password.
//
// Files selected by the vault policy are encrypted in two phases. Every file
// is first written to <artifact>.partial and verified by decrypting it in
// full. Only then are the staged artifacts renamed into place and the
// originals deleted. A file that fails either phase stays plaintext and is
// reported in the result. Cancelling during staging rolls the case back to
// its unencrypted state.
//
// Returns ErrVaultAlreadyExists if the case is already encrypted.
// Returns ErrFileNotFound if the case has no case.json.
// Returns ErrWeakPassword if password is too short.
// Returns ErrVaultBusy if another workflow holds the case lock.
func EncryptCase(ctx context.Context, opts EncryptCaseOptions) (*EncryptResult, error) {
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

	if v.IsEncrypted() {
		return nil, fmt.Errorf("%w: %s", kerrors.ErrVaultAlreadyExists, v.CaseDir())
	}
	if _, err := os.Stat(filepath.Join(v.CaseDir(), caseFileName)); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s not found in %s", kerrors.ErrFileNotFound, caseFileName, v.CaseDir())
	}
	if !opts.DryRun {
		if err := v.CheckPassword(opts.Password); err != nil {
			return nil, err
		}
	}

	targets, err := v.FindFiles(vault.Targets)
	if err != nil {
		return nil, err
	}
	log.Debugf("Found %d files to encrypt in %s", len(targets), v.CaseDir())

	result := &EncryptResult{
		CaseDir: v.CaseDir(),
		DryRun:  opts.DryRun,
	}

	if opts.DryRun {
		result.Encrypted = relPaths(v, targets)
		return result, nil
	}

	if _, err := v.Initialize(opts.Password); err != nil {
		return nil, err
	}
	s, err := v.Session()
	if err != nil {
		return nil, err
	}

	staged, err := stageTargets(ctx, v, s, targets, opts.Progress, opts.afterStage, result)
	if err != nil {
		rollbackInitialize(v, staged)
		logEncrypt(v, "encrypt-case", s, result, err)
		return nil, err
	}

	commitStaged(v, staged, result)

	log.Infof("Encrypted %d files (%d bytes) in %s", len(result.Encrypted), result.BytesEncrypted, v.CaseDir())
	if len(result.Errors) > 0 {
		log.Warnf("%d files were left unencrypted", len(result.Errors))
	}

	logEncrypt(v, "encrypt-case", s, result, nil)
	return result, nil
}

// stageTargets encrypts every target to its .partial path and verifies it.
// Per-file failures are recorded in result. A non-nil error means the
// context was cancelled; the files staged so far are returned for cleanup.
func stageTargets(ctx context.Context, v *vault.Manager, s *session.Session, targets []string, progress ProgressFunc, afterStage func(string) error, result *EncryptResult) ([]stagedFile, error) {
	var staged []stagedFile

	for i, src := range targets {
		if err := ctx.Err(); err != nil {
			return staged, err
		}

		rel := relPath(v, src)
		progress.report("Encrypting "+rel, i+1, len(targets))

		file, err := stageFile(ctx, v, s, src, afterStage)
		if err != nil {
			if ctx.Err() != nil {
				return staged, ctx.Err()
			}
			v.Logger().Warnf("Failed to encrypt %s: %v", rel, err)
			result.Skipped = append(result.Skipped, rel)
			result.Errors = append(result.Errors, FileError{Path: rel, Err: err})
			continue
		}
		staged = append(staged, file)
	}

	return staged, nil
}

func stageFile(ctx context.Context, v *vault.Manager, s *session.Session, src string, afterStage func(string) error) (stagedFile, error) {
	info, err := os.Stat(src)
	if err != nil {
		return stagedFile{}, err
	}

	file := stagedFile{
		src:    src,
		staged: v.EncryptedPath(src) + vault.PartialSuffix,
		size:   info.Size(),
	}

	if _, err := v.EncryptFileWithSession(ctx, s, src, file.staged); err != nil {
		os.Remove(file.staged)
		return stagedFile{}, err
	}

	if _, err := v.VerifyArtifactWithSession(ctx, s, file.staged, true); err != nil {
		os.Remove(file.staged)
		return stagedFile{}, fmt.Errorf("verification failed: %w", err)
	}

	if afterStage != nil {
		if err := afterStage(src); err != nil {
			os.Remove(file.staged)
			return stagedFile{}, err
		}
	}

	return file, nil
}

// commitStaged renames every staged artifact into place and deletes its
// original.
func commitStaged(v *vault.Manager, staged []stagedFile, result *EncryptResult) {
	for _, file := range staged {
		rel := relPath(v, file.src)

		if err := os.Rename(file.staged, v.EncryptedPath(file.src)); err != nil {
			os.Remove(file.staged)
			result.Skipped = append(result.Skipped, rel)
			result.Errors = append(result.Errors, FileError{Path: rel, Err: err})
			continue
		}

		result.Encrypted = append(result.Encrypted, rel)
		result.BytesEncrypted += file.size

		if err := os.Remove(file.src); err != nil {
			v.Logger().Warnf("Encrypted %s but could not remove the original: %v", rel, err)
			result.Errors = append(result.Errors, FileError{Path: rel, Err: fmt.Errorf("original not removed: %w", err)})
		}
	}
}

// rollbackInitialize discards staged files and the new sidecar, leaving the
// case as it was before EncryptCase.
func rollbackInitialize(v *vault.Manager, staged []stagedFile) {
	for _, file := range staged {
		os.Remove(file.staged)
	}
	if err := v.RemoveMetadata(); err != nil {
		v.Logger().Warnf("Failed to roll back vault metadata: %v", err)
	}
}

func logEncrypt(v *vault.Manager, op string, s *session.Session, result *EncryptResult, err error) {
	entry := audit.NewEntry(op)
	entry.SessionID = s.ID
	entry.Files = result.Encrypted
	entry.FilesCount = len(result.Encrypted)
	entry.FailedCount = len(result.Errors)
	entry.SkippedCount = len(result.Skipped)
	entry.Bytes = result.BytesEncrypted
	entry.Error = errorString(err)
	audit.Log(v.AuditPath(), entry)
}
