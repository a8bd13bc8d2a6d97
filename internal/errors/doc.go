// Package errors provides typed error values for casevault.
//
// Using sentinel errors allows callers to handle specific error conditions
// programmatically with errors.Is() rather than string matching. The CLI
// layer maps them to user-facing messages: ErrRotationPending points at
// recover, ErrVaultBusy asks to wait, and ErrVaultCorrupted is fatal for
// that vault.
//
// # Error Categories
//
//   - Session errors: no usable keys in memory (ErrVaultLocked, ErrSessionExpired)
//   - Password errors: verification or policy failures (ErrInvalidPassword, ErrWeakPassword)
//   - Vault state errors: metadata issues (ErrVaultNotFound, ErrVaultAlreadyExists, ErrVaultCorrupted)
//   - Concurrency errors: another workflow or an interrupted one (ErrVaultBusy, ErrRotationPending)
//   - Crypto errors: encryption/decryption failures (ErrEncryptFailed, ErrDecryptFailed)
//   - File errors: file system issues (ErrFileNotFound, ErrNoFilesFound)
//
// # Usage
//
// Wrap errors with additional context:
//
//	return fmt.Errorf("decrypting %s: %w", path, errors.ErrDecryptFailed)
//
// Handle errors in the CLI layer:
//
//	_, err := workflows.VerifyIntegrity(ctx, opts)
//	if errors.Is(err, kerrors.ErrRotationPending) {
//	    // Suggest casevault vault recover
//	}
package errors
