// Package configs manages casevault's vault configuration.
//
// Every tunable of the vault (key derivation cost, streaming chunk size and
// threshold, session timeout, artifact naming and the file selection policy)
// lives in a single VaultConfig value that is passed explicitly to the vault
// packages. There is no package-level configuration singleton.
//
// # Resolution Order
//
// Load builds a VaultConfig in layers, each overriding the previous one:
//
//  1. DefaultVaultConfig()
//  2. An optional TOML file, by default $XDG_CONFIG_HOME/casevault/config.toml
//  3. An optional .env file (loaded into the process environment)
//  4. Environment variables such as VAULT_SESSION_TIMEOUT
//
// # Environment Variables
//
//   - VAULT_SESSION_TIMEOUT: session timeout in minutes, 0 disables expiry
//   - VAULT_ENCRYPT_REPORTS: also encrypt files under reports/
//   - VAULT_STREAMING_THRESHOLD: size in bytes at which streaming encryption is used
//   - VAULT_PBKDF2_ITERATIONS: key derivation cost for new vaults
//   - VAULT_CHUNK_SIZE: plaintext bytes per streaming chunk
//
// # Settings
//
// UserSettings resolves the per-user configuration directory. Call
// NewUserSettings() where the CLI starts up.
package configs
