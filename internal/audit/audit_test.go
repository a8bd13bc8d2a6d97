package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLog_CreatesFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "vault.audit.jsonl")

	entry := NewEntry("encrypt_case")
	entry.Files = []string{"case.json"}
	Log(logPath, entry)

	info, err := os.Stat(logPath)
	if os.IsNotExist(err) {
		t.Fatalf("Audit log file was not created")
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected audit log mode 0600, got %v", info.Mode().Perm())
	}
}

func TestLog_AppendsEntries(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "vault.audit.jsonl")

	Log(logPath, Entry{Operation: "init"})
	Log(logPath, Entry{Operation: "unlock"})
	Log(logPath, Entry{Operation: "rotate"})

	entries, err := ReadEntries(logPath)
	if err != nil {
		t.Fatalf("ReadEntries failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}

	expected := []string{"init", "unlock", "rotate"}
	for i, op := range expected {
		if entries[i].Operation != op {
			t.Errorf("Entry %d: expected op %s, got %s", i, op, entries[i].Operation)
		}
		if entries[i].OperationID == "" {
			t.Errorf("Entry %d: operation ID should be auto-set", i)
		}
	}
	if entries[0].OperationID == entries[1].OperationID {
		t.Errorf("Operation IDs should be unique")
	}
}

func TestLog_ValidJSON(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "vault.audit.jsonl")

	entry := Entry{
		Operation:   "export",
		SessionID:   "session-1",
		Files:       []string{"case.json", "extracted/a.pdf"},
		FilesCount:  2,
		FailedCount: 1,
		OutputPath:  "/tmp/export",
	}
	Log(logPath, entry)

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Failed to read audit log: %v", err)
	}

	var parsed Entry
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(data))), &parsed); err != nil {
		t.Fatalf("Entry is not valid JSON: %v", err)
	}

	if parsed.Operation != "export" {
		t.Errorf("Expected operation export, got %s", parsed.Operation)
	}
	if parsed.SessionID != "session-1" {
		t.Errorf("Expected session-1, got %s", parsed.SessionID)
	}
	if len(parsed.Files) != 2 || parsed.FilesCount != 2 || parsed.FailedCount != 1 {
		t.Errorf("Unexpected counts: %+v", parsed)
	}
}

func TestLog_TimestampFormat(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "vault.audit.jsonl")

	Log(logPath, Entry{Operation: "verify"})

	entries, err := ReadEntries(logPath)
	if err != nil || len(entries) != 1 {
		t.Fatalf("Expected one entry, got %d (%v)", len(entries), err)
	}

	// Check timestamp format: 2006-01-02T15:04:05.000000Z.
	ts := entries[0].Timestamp
	if ts == "" {
		t.Errorf("Timestamp should be auto-set")
	}
	if !strings.HasSuffix(ts, "Z") {
		t.Errorf("Timestamp should end with Z, got %s", ts)
	}
	if !strings.Contains(ts, ".") {
		t.Errorf("Timestamp should contain microseconds, got %s", ts)
	}
}

func TestLog_OmitsEmptyFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "vault.audit.jsonl")

	Log(logPath, Entry{Operation: "lock"})

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Failed to read audit log: %v", err)
	}
	line := strings.TrimSpace(string(data))

	for _, field := range []string{`"files"`, `"session_id"`, `"output_path"`, `"error"`, `"deep"`} {
		if strings.Contains(line, field) {
			t.Errorf("Empty %s field should be omitted", field)
		}
	}
}

func TestLog_NeverRecordsSecrets(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "vault.audit.jsonl")

	entry := NewEntry("unlock")
	entry.SessionID = "2b9b0e0c-0000-4000-8000-000000000000"
	Log(logPath, entry)

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Failed to read audit log: %v", err)
	}
	for _, field := range []string{"password", "key", "salt"} {
		if strings.Contains(string(data), `"`+field+`":`) {
			t.Errorf("Audit entry should not contain a %s field", field)
		}
	}
}

func TestLog_EmptyPath(t *testing.T) {
	// Log should not panic or error.
	Log("", Entry{Operation: "encrypt_case"})
}

func TestLog_UnwritableDirectory(t *testing.T) {
	// Best-effort: a missing directory is silently ignored.
	Log(filepath.Join(t.TempDir(), "missing", "vault.audit.jsonl"), Entry{Operation: "export"})
}

func TestReadEntries_MissingFile(t *testing.T) {
	entries, err := ReadEntries(filepath.Join(t.TempDir(), "vault.audit.jsonl"))
	if err != nil {
		t.Fatalf("ReadEntries failed: %v", err)
	}
	if entries != nil {
		t.Errorf("Expected nil entries, got %v", entries)
	}
}

func TestParseEntries_ValidData(t *testing.T) {
	data := []byte(`{"ts":"2024-01-15T10:30:00.123456Z","op":"encrypt_case","op_id":"a","files_count":3}
{"ts":"2024-01-15T10:35:00.456789Z","op":"verify","op_id":"b","deep":true}
`)

	entries, err := ParseEntries(data)
	if err != nil {
		t.Fatalf("ParseEntries failed: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].FilesCount != 3 {
		t.Errorf("Expected files_count 3, got %d", entries[0].FilesCount)
	}
	if !entries[1].Deep {
		t.Errorf("Expected deep verify entry")
	}
}

func TestParseEntries_SkipsMalformedLines(t *testing.T) {
	data := []byte(`{"ts":"2024-01-15T10:30:00.123456Z","op":"init"}
this is not valid json
{"ts":"2024-01-15T10:35:00.456789Z","op":"unlock"}
{"ts":"2024-01-15T10:36:00.456789Z","op":"lo`)

	entries, err := ParseEntries(data)
	if err != nil {
		t.Fatalf("ParseEntries failed: %v", err)
	}

	if len(entries) != 2 {
		t.Errorf("Expected 2 valid entries (malformed should be skipped), got %d", len(entries))
	}
}

func TestParseEntries_EmptyData(t *testing.T) {
	entries, err := ParseEntries([]byte{})
	if err != nil {
		t.Fatalf("ParseEntries failed: %v", err)
	}

	if entries != nil {
		t.Errorf("Expected nil entries for empty data, got %v", entries)
	}
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 1, 15, 10, 30, 0, 123456000, time.UTC)

	got, ok := ParseTimestamp("2024-01-15T10:30:00.123456Z")
	if !ok || !got.Equal(want) {
		t.Errorf("Expected %v, got %v (ok=%t)", want, got, ok)
	}

	got, ok = ParseTimestamp("2024-01-15T10:30:00Z")
	if !ok || !got.Equal(want.Truncate(time.Second)) {
		t.Errorf("Expected RFC 3339 fallback, got %v (ok=%t)", got, ok)
	}

	if _, ok := ParseTimestamp("yesterday"); ok {
		t.Errorf("Expected malformed timestamp to be rejected")
	}
}
