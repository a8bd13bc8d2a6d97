package workflows

import (
	"testing"

	"github.com/stretchr/testify/require"

	kerrors "github.com/PolarWolf314/casevault/internal/errors"
)

func TestVerifyIntegritySmallAndLargeFile(t *testing.T) {
	cfg := testConfig()
	cfg.EncryptCaseJSON = false

	files := map[string][]byte{
		"case.json":           []byte(`{}`),
		"extracted/small.txt": []byte("0123456789"),
		"extracted/large.bin": make([]byte, 3*cfg.ChunkSize+cfg.ChunkSize/2+int(cfg.StreamingThreshold)),
	}
	v := newTestCaseWithConfig(t, cfg, files)

	_, err := EncryptCase(t.Context(), EncryptCaseOptions{Vault: v, Password: testPassword})
	require.NoError(t, err)
	v.Lock()

	result, err := VerifyIntegrity(t.Context(), VerifyOptions{Vault: v, Password: testPassword})
	require.NoError(t, err)
	require.Equal(t, 2, result.FilesVerified)
	require.Equal(t, 0, result.FilesFailed)
	require.Equal(t, 1, result.TokenFiles)
	require.Equal(t, 1, result.StreamFiles)
	require.Empty(t, result.Errors)
}

func TestVerifyIntegrityDetectsTampering(t *testing.T) {
	v := newEncryptedCase(t)

	// A flipped bit in the last chunk of a stream only shows up in a deep check.
	flipByte(t, artifactPath(v, "extracted/bodycam.bin"), -1)

	result, err := VerifyIntegrity(t.Context(), VerifyOptions{Vault: v})
	require.NoError(t, err)
	require.Equal(t, 3, result.FilesVerified)
	require.Equal(t, 0, result.FilesFailed)

	result, err = VerifyIntegrity(t.Context(), VerifyOptions{Vault: v, Deep: true, Workers: 1})
	require.NoError(t, err)
	require.True(t, result.Deep)
	require.Equal(t, 2, result.FilesVerified)
	require.Equal(t, 1, result.FilesFailed)
	require.Equal(t, "extracted/bodycam.bin", result.Errors[0].Path)
	require.ErrorIs(t, result.Errors[0], kerrors.ErrDecryptFailed)

	// Tokens are always checked in full.
	flipByte(t, artifactPath(v, "extracted/statement.txt"), 20)

	result, err = VerifyIntegrity(t.Context(), VerifyOptions{Vault: v})
	require.NoError(t, err)
	require.Equal(t, 2, result.FilesVerified)
	require.Equal(t, 1, result.FilesFailed)
	require.Equal(t, "extracted/statement.txt", result.Errors[0].Path)
}

func TestVerifyIntegrityWrongPasswordCreatesNoSession(t *testing.T) {
	v := newEncryptedCase(t)
	v.Lock()

	_, err := VerifyIntegrity(t.Context(), VerifyOptions{Vault: v, Password: "not-the-password"})
	require.ErrorIs(t, err, kerrors.ErrInvalidPassword)
	require.False(t, v.IsUnlocked())
}

func TestVerifyIntegrityRequiresSession(t *testing.T) {
	v := newEncryptedCase(t)
	v.Lock()

	_, err := VerifyIntegrity(t.Context(), VerifyOptions{Vault: v})
	require.ErrorIs(t, err, kerrors.ErrVaultLocked)
}

func TestVerifyIntegrityUnencryptedCase(t *testing.T) {
	v := newTestCase(t)

	_, err := VerifyIntegrity(t.Context(), VerifyOptions{Vault: v, Password: testPassword})
	require.ErrorIs(t, err, kerrors.ErrVaultNotFound)
}
