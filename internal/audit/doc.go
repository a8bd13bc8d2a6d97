// Package audit records vault operations in a per-case audit trail.
//
// Initialization, unlocks, migrations, exports, rotations and removals each
// append one entry. Entries name the operation, the session that performed
// it and how many files were touched. They never carry passwords, keys or
// file contents.
//
// # Log Format
//
// The trail is JSON Lines (one JSON object per line) at the case root:
//
//	vault.audit.jsonl
//
// The file is plaintext and stays in place when the case is encrypted; it is
// excluded from encryption and from exports.
//
// # Usage
//
//	entry := audit.NewEntry("encrypt_case")
//	entry.FilesCount = len(result.Encrypted)
//	audit.Log(v.AuditPath(), entry)
//
// # Failure Handling
//
// Audit logging is best-effort. If logging fails (permissions, disk full,
// etc.), the operation continues without error.
//
// # Reading Logs
//
// Use ReadEntries to parse the trail. Malformed lines are skipped so that a
// torn final write does not hide earlier entries.
package audit
