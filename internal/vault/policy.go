package vault

import (
	"path/filepath"
	"strings"

	"github.com/PolarWolf314/casevault/internal/configs"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	// PartialSuffix marks a ciphertext staged during case encryption.
	PartialSuffix = ".partial"

	// RotateSuffix marks a ciphertext staged during password rotation.
	RotateSuffix = ".rotate"

	// PendingSuffix marks metadata staged during password rotation.
	PendingSuffix = ".pending"

	caseFileName = "case.json"
	reportsDir   = "reports"
	workDir      = "work"
)

// Policy decides which files of a case are encrypted.
type Policy struct {
	cfg configs.VaultConfig
}

// NewPolicy returns the policy described by cfg.
func NewPolicy(cfg configs.VaultConfig) *Policy {
	return &Policy{cfg: cfg}
}

// IsVaultFile reports whether rel names a file the vault itself manages:
// the sidecar, lock, audit log, artifacts and staging leftovers.
func (p *Policy) IsVaultFile(rel string) bool {
	base := filepath.Base(rel)
	switch base {
	case p.cfg.MetadataFile, p.cfg.MetadataFile + PendingSuffix, p.cfg.LockFile, p.cfg.AuditFile:
		return true
	}
	return p.IsArtifact(base) || strings.HasSuffix(base, PartialSuffix) || strings.HasSuffix(base, RotateSuffix)
}

// IsArtifact reports whether path carries the encrypted extension.
func (p *Policy) IsArtifact(path string) bool {
	return strings.HasSuffix(path, p.cfg.EncryptedExtension)
}

// IsSkippedDir reports whether a top-level directory is excluded from
// encryption. Reports and work items are skipped unless their flags are set.
func (p *Policy) IsSkippedDir(name string) bool {
	switch {
	case name == reportsDir && p.cfg.EncryptReports:
		return false
	case name == workDir && p.cfg.EncryptWorkItems:
		return false
	}

	for _, skip := range p.cfg.SkipDirs {
		if name == strings.TrimSuffix(skip, "/") {
			return true
		}
	}
	return false
}

// ShouldEncrypt reports whether the file at rel, relative to the case root,
// is encrypted.
func (p *Policy) ShouldEncrypt(rel string) bool {
	rel = filepath.ToSlash(filepath.Clean(rel))
	if rel == "." || strings.HasPrefix(rel, "../") || p.IsVaultFile(rel) {
		return false
	}

	parts := strings.Split(rel, "/")
	top := parts[0]
	inDir := len(parts) > 1

	if inDir && p.IsSkippedDir(top) {
		return false
	}
	if matchAny(p.cfg.ExcludePatterns, rel) {
		return false
	}

	if inDir {
		switch top {
		case reportsDir:
			return p.cfg.EncryptReports
		case workDir:
			return p.cfg.EncryptWorkItems
		}
		for _, dir := range p.cfg.EncryptedDirs {
			if top == strings.TrimSuffix(dir, "/") {
				return p.cfg.EncryptEvidence
			}
		}
	}

	if matchAny(p.cfg.IncludePatterns, rel) {
		return true
	}

	return parts[len(parts)-1] == caseFileName && p.cfg.EncryptCaseJSON
}

func matchAny(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}
