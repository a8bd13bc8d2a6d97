package errors

import "errors"

// Session errors indicate that no usable key material is held in memory.
var (
	// ErrVaultLocked indicates an operation needs an unlocked vault but no session exists.
	ErrVaultLocked = errors.New("vault is locked, unlock with password first")

	// ErrSessionExpired indicates the vault session timed out and was evicted.
	ErrSessionExpired = errors.New("session has expired, please unlock again")
)

// Password errors indicate a password was rejected.
var (
	// ErrInvalidPassword indicates password verification failed.
	ErrInvalidPassword = errors.New("invalid password")

	// ErrWeakPassword indicates the password does not meet the minimum length.
	ErrWeakPassword = errors.New("password is too short")
)

// Vault state errors indicate issues with the vault metadata sidecar.
var (
	// ErrVaultNotFound indicates the case has no vault metadata.
	ErrVaultNotFound = errors.New("vault not found")

	// ErrVaultAlreadyExists indicates the case is already encrypted.
	ErrVaultAlreadyExists = errors.New("case is already encrypted")

	// ErrVaultCorrupted indicates the vault metadata could not be parsed.
	ErrVaultCorrupted = errors.New("vault data is corrupted")

	// ErrRotationPending indicates a password rotation was interrupted after its commit point.
	ErrRotationPending = errors.New("an interrupted password rotation must be recovered first")

	// ErrVaultBusy indicates another process holds the vault's migration lock.
	ErrVaultBusy = errors.New("vault is busy with another operation")
)

// Cryptographic errors indicate failures during encryption or decryption operations.
var (
	// ErrEncryptFailed indicates encryption failed.
	ErrEncryptFailed = errors.New("failed to encrypt")

	// ErrDecryptFailed indicates decryption or authentication failed.
	ErrDecryptFailed = errors.New("failed to decrypt")

	// ErrUnknownFormat indicates a ciphertext artifact carries an unknown format tag.
	ErrUnknownFormat = errors.New("unknown ciphertext format")

	// ErrInvalidKeyLength indicates key material has an unexpected length.
	ErrInvalidKeyLength = errors.New("invalid key length")
)

// File errors indicate issues with file discovery or access.
var (
	// ErrNoFilesFound indicates no files matched the vault policy.
	ErrNoFilesFound = errors.New("no matching files found")

	// ErrFileNotFound indicates a specific file could not be located.
	ErrFileNotFound = errors.New("file not found")
)
