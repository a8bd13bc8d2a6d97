package workflows

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PolarWolf314/casevault/internal/audit"
	kerrors "github.com/PolarWolf314/casevault/internal/errors"
)

// LogOptions configures the log workflow.
type LogOptions struct {
	// AuditPath is the audit log to read, usually Manager.AuditPath.
	AuditPath string

	// Limit is the maximum number of entries to return. 0 means no limit.
	Limit int

	// Reverse orders entries from most recent to oldest when true.
	Reverse bool

	// User keeps entries recorded by this OS user.
	User string

	// Operations keeps entries whose operation is in the list.
	Operations []string

	// Since and Until bound the entry timestamps. Zero values are open.
	Since time.Time
	Until time.Time
}

// LogResult contains the outcome of a log operation.
type LogResult struct {
	// Entries are the filtered audit log entries.
	Entries []audit.Entry

	// Total is the number of entries before filtering.
	Total int
}

// Log reads and filters the audit log of a case. Malformed lines are
// skipped. With a Limit the most recent matching entries are kept.
//
// Returns ErrNoFilesFound if the case has no audit log.
func Log(ctx context.Context, opts LogOptions) (*LogResult, error) {
	entries, err := audit.ReadEntries(opts.AuditPath)
	if err != nil {
		return nil, fmt.Errorf("reading audit log: %w", err)
	}
	if entries == nil {
		return nil, fmt.Errorf("%w: no audit log at %s", kerrors.ErrNoFilesFound, opts.AuditPath)
	}

	result := &LogResult{Total: len(entries)}

	ops := make(map[string]bool, len(opts.Operations))
	for _, op := range opts.Operations {
		ops[strings.ToLower(strings.TrimSpace(op))] = true
	}

	filtered := entries[:0]
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if opts.User != "" && !strings.EqualFold(e.User, opts.User) {
			continue
		}
		if len(ops) > 0 && !ops[strings.ToLower(e.Operation)] {
			continue
		}
		if !opts.Since.IsZero() || !opts.Until.IsZero() {
			ts, ok := audit.ParseTimestamp(e.Timestamp)
			if !ok {
				continue
			}
			if !opts.Since.IsZero() && ts.Before(opts.Since) {
				continue
			}
			if !opts.Until.IsZero() && ts.After(opts.Until) {
				continue
			}
		}
		filtered = append(filtered, e)
	}

	if opts.Limit > 0 && len(filtered) > opts.Limit {
		filtered = filtered[len(filtered)-opts.Limit:]
	}

	if opts.Reverse {
		for i, j := 0, len(filtered)-1; i < j; i, j = i+1, j-1 {
			filtered[i], filtered[j] = filtered[j], filtered[i]
		}
	}

	result.Entries = filtered
	return result, nil
}
