// Package secrets provides the cryptographic primitives of a case vault.
//
// # Key Derivation
//
// Vault keys are derived from a password with PBKDF2-HMAC-SHA256 over a
// random per-vault salt. The derived 32 bytes serve both encryption schemes
// and live in a [Key], a secret buffer that is zeroed on [Key.Destroy] and
// locked into memory where the platform allows it.
//
// A password is checked against a verification hash: a token of a fixed
// plaintext sealed under the derived key. No password or key is ever stored.
//
// # Small-File Tokens
//
// Files below the streaming threshold are sealed whole into a
// Fernet-compatible token:
//
//	0x80 ‖ u64 timestamp ‖ 16-byte IV ‖ AES-128-CBC ciphertext ‖ HMAC-SHA256
//
// The first 16 key bytes sign and the last 16 encrypt. The token is
// URL-safe base64 encoded.
//
// # Streaming Encryption
//
// Larger files are split into chunks (64 KiB by default), each sealed with
// AES-256-GCM under a fresh random nonce:
//
//	u32 chunk_count, then per chunk: u32 len ‖ nonce(12) ‖ ciphertext ‖ tag(16)
//
// The chunk count and chunk index are bound as associated data, so
// reordered, dropped or appended chunks fail authentication. A record
// longer than the configured chunk size plus [ChunkOverhead] is rejected
// before anything is allocated for it, so artifacts written with a larger
// chunk size only open under that size or a larger one.
//
// # Key Lifetime
//
// A [Key] hands its material out only through [Key.Use], which holds off
// [Key.Destroy]. Ciphers copy what they need when they are built and refuse
// new work once their key is destroyed.
//
// # Format Tags
//
// Every artifact written by the vault starts with a one-byte [Format] tag
// naming the scheme that produced it.
package secrets
