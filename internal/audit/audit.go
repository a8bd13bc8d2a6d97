package audit

import (
	"encoding/json"
	"os"
	"time"

	"github.com/PolarWolf314/casevault/internal/utils"

	"github.com/google/uuid"
)

const timestampFormat = "2006-01-02T15:04:05.000000Z"

// Entry represents a single audit log entry.
type Entry struct {
	Timestamp   string `json:"ts"`    // RFC3339 with microseconds.
	Operation   string `json:"op"`    // Operation name.
	OperationID string `json:"op_id"` // Unique per operation.
	User        string `json:"user,omitempty"`

	// Optional fields depending on operation.
	SessionID    string   `json:"session_id,omitempty"`    // Session that held the key.
	Files        []string `json:"files,omitempty"`         // Case-relative paths.
	FilesCount   int      `json:"files_count,omitempty"`   // Files processed successfully.
	FailedCount  int      `json:"failed_count,omitempty"`  // Files that failed.
	SkippedCount int      `json:"skipped_count,omitempty"` // Files left alone.
	Bytes        int64    `json:"bytes,omitempty"`         // Plaintext bytes processed.
	OutputPath   string   `json:"output_path,omitempty"`   // For export.
	Deep         bool     `json:"deep,omitempty"`          // For verify.
	Error        string   `json:"error,omitempty"`         // Top-level failure, if any.
}

// NewEntry returns an entry for op with a fresh operation ID and the
// current OS user.
func NewEntry(op string) Entry {
	return Entry{
		Operation:   op,
		OperationID: uuid.NewString(),
		User:        utils.CurrentUser(),
	}
}

// Log appends an entry to the audit log at logPath.
// If logging fails, the error is dropped: operations should not fail just
// because audit logging failed.
func Log(logPath string, entry Entry) {
	if logPath == "" {
		return
	}

	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format(timestampFormat)
	}
	if entry.OperationID == "" {
		entry.OperationID = uuid.NewString()
	}

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return
	}
	defer f.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	_, _ = f.Write(append(data, '\n'))
}

// ParseTimestamp parses an entry timestamp. Older entries may use plain
// RFC 3339.
func ParseTimestamp(ts string) (time.Time, bool) {
	t, err := time.Parse(timestampFormat, ts)
	if err != nil {
		t, err = time.Parse(time.RFC3339, ts)
	}
	return t, err == nil
}

// ReadEntries reads all entries from the audit log at logPath.
// Returns an empty slice if the log doesn't exist.
func ReadEntries(logPath string) ([]Entry, error) {
	data, err := os.ReadFile(logPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return ParseEntries(data)
}

// ParseEntries parses JSON Lines data into audit entries.
// Malformed lines are silently skipped.
func ParseEntries(data []byte) ([]Entry, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var entries []Entry
	start := 0

	for i := 0; i <= len(data); i++ {
		if i == len(data) || data[i] == '\n' {
			line := data[start:i]
			start = i + 1

			if len(line) == 0 {
				continue
			}

			var entry Entry
			if err := json.Unmarshal(line, &entry); err != nil {
				continue
			}
			entries = append(entries, entry)
		}
	}

	return entries, nil
}
