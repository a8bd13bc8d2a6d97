// Package vault manages the encryption state of a single case directory.
//
// A case is encrypted when its metadata sidecar (vault.meta by default)
// exists. The sidecar is plaintext JSON holding the salt, KDF parameters and
// a verification hash; it never holds a password or key.
//
// [Manager] ties a case to a [session.Manager]: unlocking installs a session,
// and every key-using operation looks the session up again so that expiry
// and locking take effect immediately. Each operation also has a
// WithSession form taking an explicit session, used while rotating keys.
//
// Files below the configured streaming threshold are sealed as whole-file
// tokens; larger files use the chunked stream format. Decryption reads the
// artifact's format tag rather than guessing from its size.
//
// [Policy] decides which files in a case are encrypted.
package vault
