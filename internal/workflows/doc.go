// Package workflows provides the migration tools for case vaults.
//
// Workflows coordinate the vault, session and audit packages to implement
// complete operations over a whole case directory. Each workflow handles a
// single command's business logic, independent of CLI concerns like flag
// parsing, spinners, and output formatting.
//
// # Available Workflows
//
//   - EncryptCase: turns a plaintext case into a vault
//   - Export: writes a decrypted copy of a vault to a directory or archive
//   - VerifyIntegrity: authenticates every artifact without writing plaintext
//   - RotatePassword: re-encrypts every artifact under a new password
//   - RecoverInterrupted: cleans up or completes an interrupted migration
//   - RemoveEncryption: decrypts a vault in place and removes it
//   - Status: summarizes the vault state of a case
//
// # Locking
//
// Every workflow that modifies a case holds an exclusive file lock on the
// case for its duration. A second workflow against the same case fails with
// ErrVaultBusy instead of waiting.
//
// # Error Handling
//
// Workflows return typed errors from the internal/errors package. Failures
// confined to a single file are collected in the result's Errors field and
// do not abort the workflow:
//
//	result, err := workflows.EncryptCase(ctx, opts)
//	if errors.Is(err, kerrors.ErrVaultAlreadyExists) {
//	    // Nothing to do.
//	}
//	for _, fe := range result.Errors {
//	    // fe.Path stayed plaintext.
//	}
//
// # Context Usage
//
// All workflow functions accept a context.Context as their first parameter.
// Cancellation is checked between files and between streaming chunks.
package workflows
