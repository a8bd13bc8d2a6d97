package workflows

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/PolarWolf314/casevault/internal/audit"
	kerrors "github.com/PolarWolf314/casevault/internal/errors"
)

func TestLogReadsWorkflowEntries(t *testing.T) {
	v := newEncryptedCase(t)

	_, err := VerifyIntegrity(t.Context(), VerifyOptions{Vault: v, Deep: true})
	require.NoError(t, err)

	result, err := Log(t.Context(), LogOptions{AuditPath: v.AuditPath()})
	require.NoError(t, err)
	require.Equal(t, 2, result.Total)
	require.Equal(t, "encrypt-case", result.Entries[0].Operation)
	require.Equal(t, "verify", result.Entries[1].Operation)
	require.True(t, result.Entries[1].Deep)

	result, err = Log(t.Context(), LogOptions{AuditPath: v.AuditPath(), Operations: []string{" VERIFY "}})
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	require.Equal(t, 2, result.Total)
}

func TestLogFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.audit.jsonl")
	for i, op := range []string{"encrypt-case", "verify", "export", "rotate"} {
		entry := audit.NewEntry(op)
		entry.User = "alice"
		if op == "export" {
			entry.User = "bob"
		}
		entry.Timestamp = time.Date(2024, 3, 1+i, 12, 0, 0, 0, time.UTC).Format(time.RFC3339)
		audit.Log(path, entry)
	}

	ops := func(r *LogResult) []string {
		var out []string
		for _, e := range r.Entries {
			out = append(out, e.Operation)
		}
		return out
	}

	result, err := Log(t.Context(), LogOptions{AuditPath: path, User: "ALICE"})
	require.NoError(t, err)
	require.Equal(t, []string{"encrypt-case", "verify", "rotate"}, ops(result))

	result, err = Log(t.Context(), LogOptions{
		AuditPath: path,
		Since:     time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
		Until:     time.Date(2024, 3, 3, 23, 59, 59, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Equal(t, []string{"verify", "export"}, ops(result))

	result, err = Log(t.Context(), LogOptions{AuditPath: path, Limit: 2, Reverse: true})
	require.NoError(t, err)
	require.Equal(t, []string{"rotate", "export"}, ops(result))

	result, err = Log(t.Context(), LogOptions{AuditPath: path, Limit: 2})
	require.NoError(t, err)
	require.Equal(t, []string{"export", "rotate"}, ops(result))
}

func TestLogWithoutAuditLog(t *testing.T) {
	v := newTestCase(t)

	_, err := Log(t.Context(), LogOptions{AuditPath: v.AuditPath()})
	require.ErrorIs(t, err, kerrors.ErrNoFilesFound)
}
