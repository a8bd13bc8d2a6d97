package configs

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// maxChunkSize mirrors the limit enforced by the stream reader.
const maxChunkSize = 16 * 1024 * 1024

// VaultConfig holds the tunable parameters of a case vault.
type VaultConfig struct {
	// Key derivation.
	PBKDF2Iterations  int `toml:"pbkdf2_iterations" env:"VAULT_PBKDF2_ITERATIONS"`
	SaltSize          int `toml:"salt_size"`
	KeySize           int `toml:"key_size"`
	MinPasswordLength int `toml:"min_password_length"`

	// Streaming encryption.
	ChunkSize          int   `toml:"chunk_size" env:"VAULT_CHUNK_SIZE"`
	StreamingThreshold int64 `toml:"streaming_threshold" env:"VAULT_STREAMING_THRESHOLD"`

	// Session management. Zero disables expiry.
	SessionTimeoutMinutes int `toml:"session_timeout_minutes" env:"VAULT_SESSION_TIMEOUT"`

	// File naming.
	EncryptedExtension string `toml:"encrypted_extension"`
	MetadataFile       string `toml:"metadata_file"`
	LockFile           string `toml:"lock_file"`
	AuditFile          string `toml:"audit_file"`

	// What to encrypt.
	EncryptCaseJSON  bool `toml:"encrypt_case_json"`
	EncryptEvidence  bool `toml:"encrypt_evidence"`
	EncryptReports   bool `toml:"encrypt_reports" env:"VAULT_ENCRYPT_REPORTS"`
	EncryptWorkItems bool `toml:"encrypt_work_items"`

	// Directories to process, relative to the case root.
	EncryptedDirs []string `toml:"encrypted_dirs"`
	SkipDirs      []string `toml:"skip_dirs"`

	// Doublestar globs, relative to the case root.
	IncludePatterns []string `toml:"include_patterns"`
	ExcludePatterns []string `toml:"exclude_patterns"`
}

// DefaultVaultConfig returns the built-in configuration.
func DefaultVaultConfig() VaultConfig {
	return VaultConfig{
		PBKDF2Iterations:      480_000,
		SaltSize:              32,
		KeySize:               32,
		MinPasswordLength:     8,
		ChunkSize:             64 * 1024,
		StreamingThreshold:    100 * 1024 * 1024,
		SessionTimeoutMinutes: 30,
		EncryptedExtension:    ".enc",
		MetadataFile:          "vault.meta",
		LockFile:              ".vault.lock",
		AuditFile:             "vault.audit.jsonl",
		EncryptCaseJSON:       true,
		EncryptEvidence:       true,
		EncryptReports:        false,
		EncryptWorkItems:      false,
		EncryptedDirs:         []string{"extracted"},
		SkipDirs:              []string{"__pycache__", ".git", "reports", "work"},
	}
}

// SessionTimeout returns the session timeout as a duration. Zero means no expiry.
func (c VaultConfig) SessionTimeout() time.Duration {
	return time.Duration(c.SessionTimeoutMinutes) * time.Minute
}

// Validate reports configuration values the vault cannot operate with.
func (c VaultConfig) Validate() error {
	switch {
	case c.PBKDF2Iterations <= 0:
		return fmt.Errorf("pbkdf2_iterations must be positive, got %d", c.PBKDF2Iterations)
	case c.SaltSize < 16:
		return fmt.Errorf("salt_size must be at least 16 bytes, got %d", c.SaltSize)
	case c.KeySize != 32:
		return fmt.Errorf("key_size must be 32 bytes, got %d", c.KeySize)
	case c.ChunkSize <= 0 || c.ChunkSize > maxChunkSize:
		return fmt.Errorf("chunk_size must be between 1 and %d, got %d", maxChunkSize, c.ChunkSize)
	case c.StreamingThreshold <= 0:
		return fmt.Errorf("streaming_threshold must be positive, got %d", c.StreamingThreshold)
	case c.SessionTimeoutMinutes < 0:
		return fmt.Errorf("session_timeout_minutes must not be negative, got %d", c.SessionTimeoutMinutes)
	case c.EncryptedExtension == "":
		return fmt.Errorf("encrypted_extension must not be empty")
	case c.MetadataFile == "":
		return fmt.Errorf("metadata_file must not be empty")
	}
	return nil
}

// LoadOptions configures Load.
type LoadOptions struct {
	// ConfigFile is an optional TOML file. A missing file is not an error.
	ConfigFile string

	// EnvFile is an optional dotenv file. A missing file is not an error.
	EnvFile string
}

// Load resolves the vault configuration from defaults, the TOML file, the
// dotenv file and the process environment, in that order.
func Load(opts LoadOptions) (VaultConfig, error) {
	cfg := DefaultVaultConfig()

	if opts.ConfigFile != "" {
		if _, err := os.Stat(opts.ConfigFile); err == nil {
			if err := LoadTOML(opts.ConfigFile, &cfg); err != nil {
				return VaultConfig{}, fmt.Errorf("failed to load config file %s: %w", opts.ConfigFile, err)
			}
		} else if !os.IsNotExist(err) {
			return VaultConfig{}, fmt.Errorf("failed to stat config file %s: %w", opts.ConfigFile, err)
		}
	}

	if opts.EnvFile != "" {
		if _, err := os.Stat(opts.EnvFile); err == nil {
			if err := godotenv.Load(opts.EnvFile); err != nil {
				return VaultConfig{}, fmt.Errorf("failed to load env file %s: %w", opts.EnvFile, err)
			}
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return VaultConfig{}, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return VaultConfig{}, err
	}

	return cfg, nil
}
