package workflows

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/PolarWolf314/casevault/internal/configs"
	"github.com/PolarWolf314/casevault/internal/session"
	"github.com/PolarWolf314/casevault/internal/vault"
)

const (
	testPassword = "CorrectHorseBattery1"
	newPassword  = "Tr0ubadour&3-Rotated"
)

func testConfig() configs.VaultConfig {
	cfg := configs.DefaultVaultConfig()
	cfg.PBKDF2Iterations = 1000
	cfg.ChunkSize = 1024
	cfg.StreamingThreshold = 4096
	return cfg
}

// caseFiles is the content of a small case. The policy encrypts case.json
// and everything under extracted/; reports/ and loose root files stay
// plaintext.
func caseFiles() map[string][]byte {
	return map[string][]byte{
		"case.json":               []byte(`{"case_id":"2026-CR-0042","defendant":"Doe"}`),
		"extracted/statement.txt": []byte("Statement1"),
		"extracted/bodycam.bin":   bytes.Repeat([]byte("frame-0123"), 1000),
		"reports/summary.md":      []byte("# Summary\n"),
		"notes.txt":               []byte("call back tuesday"),
	}
}

var encryptedFiles = []string{
	"case.json",
	"extracted/bodycam.bin",
	"extracted/statement.txt",
}

func newTestCase(t *testing.T) *vault.Manager {
	t.Helper()
	return newTestCaseWithConfig(t, testConfig(), caseFiles())
}

func newTestCaseWithConfig(t *testing.T, cfg configs.VaultConfig, files map[string][]byte) *vault.Manager {
	t.Helper()

	caseDir := t.TempDir()
	for rel, data := range files {
		writeFile(t, filepath.Join(caseDir, filepath.FromSlash(rel)), data)
	}

	v, err := vault.New(caseDir, session.NewManager(), cfg)
	require.NoError(t, err)
	return v
}

// newEncryptedCase returns an encrypted, unlocked case.
func newEncryptedCase(t *testing.T) *vault.Manager {
	t.Helper()

	v := newTestCase(t)
	result, err := EncryptCase(t.Context(), EncryptCaseOptions{Vault: v, Password: testPassword})
	require.NoError(t, err)
	require.Empty(t, result.Errors)
	return v
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0700))
	require.NoError(t, os.WriteFile(path, data, 0600))
}

func casePath(v *vault.Manager, rel string) string {
	return filepath.Join(v.CaseDir(), filepath.FromSlash(rel))
}

func artifactPath(v *vault.Manager, rel string) string {
	return v.EncryptedPath(casePath(v, rel))
}

// snapshot reads every regular file of the case keyed by relative path.
func snapshot(t *testing.T, v *vault.Manager) map[string][]byte {
	t.Helper()

	files := make(map[string][]byte)
	err := filepath.Walk(v.CaseDir(), func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(v.CaseDir(), path)
		if err != nil {
			return err
		}
		if rel == v.Config().AuditFile || rel == v.Config().LockFile {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = data
		return nil
	})
	require.NoError(t, err)
	return files
}

func flipByte(t *testing.T, path string, offset int) {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	if offset < 0 {
		offset += len(data)
	}
	data[offset] ^= 0x01
	require.NoError(t, os.WriteFile(path, data, 0600))
}
