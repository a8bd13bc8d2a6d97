package workflows

import (
	"context"
	"os"
	"time"

	"github.com/PolarWolf314/casevault/internal/secrets"
	"github.com/PolarWolf314/casevault/internal/vault"
)

// StatusOptions configures the status workflow.
type StatusOptions struct {
	// Vault is the case to inspect.
	Vault *vault.Manager
}

// StatusResult describes the vault state of a case.
type StatusResult struct {
	CaseDir string

	// Encrypted indicates the case has a vault sidecar.
	Encrypted bool

	// Metadata is the sidecar, or nil for an unencrypted case.
	Metadata *vault.Metadata

	// Unlocked indicates a live session holds the vault key.
	Unlocked bool

	// TimeRemaining is how long the session stays usable without access.
	// It is zero when NeverExpires is set.
	TimeRemaining time.Duration
	NeverExpires  bool

	// TokenArtifacts and StreamArtifacts count artifacts by scheme.
	// UnknownArtifacts have an unreadable or unknown format tag.
	TokenArtifacts   int
	StreamArtifacts  int
	UnknownArtifacts int

	// Unencrypted lists files the policy selects that are still plaintext,
	// relative to the case root.
	Unencrypted []string

	// Leftovers lists staging files of interrupted work.
	Leftovers []string

	// RotationPending indicates an interrupted rotation awaits recovery.
	RotationPending bool
}

// Artifacts returns the total number of artifacts.
func (r *StatusResult) Artifacts() int {
	return r.TokenArtifacts + r.StreamArtifacts + r.UnknownArtifacts
}

// NeedsRecovery reports whether RecoverInterrupted has work to do.
func (r *StatusResult) NeedsRecovery() bool {
	return r.RotationPending || len(r.Leftovers) > 0
}

// Status inspects a case without modifying it or touching its session.
//
// Returns ErrVaultCorrupted if the sidecar exists but cannot be read.
func Status(ctx context.Context, opts StatusOptions) (*StatusResult, error) {
	v := opts.Vault
	if v == nil {
		return nil, errNoVault
	}

	result := &StatusResult{
		CaseDir:   v.CaseDir(),
		Encrypted: v.IsEncrypted(),
	}

	if result.Encrypted {
		meta, err := v.LoadMetadata()
		if err != nil {
			return nil, err
		}
		result.Metadata = meta
	}

	for _, s := range v.Sessions().Active() {
		if s.CasePath != v.CaseDir() {
			continue
		}
		result.Unlocked = true
		remaining, ok := s.TimeRemaining(v.Sessions().Now())
		result.TimeRemaining = remaining
		result.NeverExpires = !ok
	}

	artifacts, err := v.FindFiles(vault.Artifacts)
	if err != nil {
		return nil, err
	}
	for _, path := range artifacts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		format, err := secrets.DetectFormat(path)
		switch {
		case err != nil:
			result.UnknownArtifacts++
		case format == secrets.FormatStream:
			result.StreamArtifacts++
		default:
			result.TokenArtifacts++
		}
	}

	if result.Encrypted {
		targets, err := v.FindFiles(vault.Targets)
		if err != nil {
			return nil, err
		}
		result.Unencrypted = relPaths(v, targets)
	}

	leftovers, err := v.FindFiles(vault.Staged)
	if err != nil {
		return nil, err
	}
	result.Leftovers = relPaths(v, leftovers)

	if _, err := os.Stat(v.PendingMetadataPath()); err == nil {
		result.RotationPending = true
	}

	return result, nil
}
