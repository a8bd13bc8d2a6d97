package vault_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/PolarWolf314/casevault/internal/configs"
	"github.com/PolarWolf314/casevault/internal/session"
	"github.com/PolarWolf314/casevault/internal/vault"
)

const testPassword = "CorrectHorseBattery1"

func testConfig() configs.VaultConfig {
	cfg := configs.DefaultVaultConfig()
	cfg.PBKDF2Iterations = 1000
	cfg.ChunkSize = 1024
	cfg.StreamingThreshold = 4096
	return cfg
}

func newTestManager(t *testing.T) (*vault.Manager, string) {
	t.Helper()

	caseDir := t.TempDir()
	m, err := vault.New(caseDir, session.NewManager(), testConfig())
	require.NoError(t, err)
	return m, m.CaseDir()
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0700))
	require.NoError(t, os.WriteFile(path, data, 0600))
}
