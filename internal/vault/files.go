package vault

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	kerrors "github.com/PolarWolf314/casevault/internal/errors"

	"github.com/bmatcuk/doublestar/v4"
)

// FileKind selects what a case walk collects.
type FileKind int

const (
	// Targets are plaintext files the policy says to encrypt.
	Targets FileKind = iota

	// Artifacts are committed ciphertext files.
	Artifacts

	// Staged are leftovers of interrupted encryption or rotation.
	Staged
)

// FindFiles walks the case and returns absolute paths of the given kind in
// lexical order. Version control directories are never entered.
func (m *Manager) FindFiles(kind FileKind) ([]string, error) {
	var files []string

	err := filepath.WalkDir(m.caseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(m.caseDir, path)
		if err != nil {
			return err
		}

		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			if kind == Targets && rel != "." && !strings.Contains(filepath.ToSlash(rel), "/") && m.policy.IsSkippedDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}

		if m.matchesKind(kind, rel) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", m.caseDir, err)
	}

	sort.Strings(files)
	return files, nil
}

func (m *Manager) matchesKind(kind FileKind, rel string) bool {
	switch kind {
	case Targets:
		return m.policy.ShouldEncrypt(rel)
	case Artifacts:
		return m.policy.IsArtifact(rel)
	case Staged:
		return strings.HasSuffix(rel, PartialSuffix) || strings.HasSuffix(rel, RotateSuffix) ||
			rel == m.cfg.MetadataFile+PendingSuffix
	}
	return false
}

// ResolveFiles expands user-supplied paths, directories and doublestar globs
// relative to the case root into files of the given kind. An empty pattern
// list returns nil so the caller can fall back to FindFiles.
func (m *Manager) ResolveFiles(patterns []string, kind FileKind) ([]string, error) {
	if len(patterns) == 0 {
		return nil, nil
	}

	var files []string
	seen := make(map[string]bool)

	for _, pattern := range patterns {
		resolved, err := m.resolvePattern(pattern, kind)
		if err != nil {
			return nil, err
		}

		for _, f := range resolved {
			if !seen[f] {
				seen[f] = true
				files = append(files, f)
			}
		}
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s", kerrors.ErrNoFilesFound, strings.Join(patterns, ", "))
	}

	sort.Strings(files)
	return files, nil
}

func (m *Manager) resolvePattern(pattern string, kind FileKind) ([]string, error) {
	absPattern := pattern
	if !filepath.IsAbs(pattern) {
		absPattern = filepath.Join(m.caseDir, pattern)
	}

	info, err := os.Stat(absPattern)
	if err == nil && info.IsDir() {
		all, err := m.FindFiles(kind)
		if err != nil {
			return nil, err
		}
		prefix := absPattern + string(filepath.Separator)
		var inDir []string
		for _, f := range all {
			if strings.HasPrefix(f, prefix) {
				inDir = append(inDir, f)
			}
		}
		return inDir, nil
	}

	if strings.ContainsAny(pattern, "*?[{") {
		matches, err := doublestar.FilepathGlob(absPattern)
		if err != nil {
			return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
		}

		var filtered []string
		for _, match := range matches {
			if info, err := os.Stat(match); err != nil || !info.Mode().IsRegular() {
				continue
			}
			if rel, err := filepath.Rel(m.caseDir, match); err == nil && m.matchesKind(kind, rel) {
				filtered = append(filtered, match)
			}
		}
		return filtered, nil
	}

	// A plain name may refer to the artifact by its decrypted name.
	if kind == Artifacts && !m.policy.IsArtifact(absPattern) {
		absPattern = m.EncryptedPath(absPattern)
	}

	if _, err := os.Stat(absPattern); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", kerrors.ErrFileNotFound, pattern)
	}

	rel, err := filepath.Rel(m.caseDir, absPattern)
	if err != nil || strings.HasPrefix(rel, "..") {
		return nil, fmt.Errorf("%s is outside the case directory", pattern)
	}
	if !m.matchesKind(kind, rel) {
		if kind == Artifacts {
			return nil, fmt.Errorf("%s is not an encrypted file", pattern)
		}
		return nil, fmt.Errorf("%s is not selected for encryption", pattern)
	}

	return []string{absPattern}, nil
}
