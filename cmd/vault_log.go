package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PolarWolf314/casevault/internal/audit"
	kerrors "github.com/PolarWolf314/casevault/internal/errors"
	"github.com/PolarWolf314/casevault/internal/ui"
	"github.com/PolarWolf314/casevault/internal/workflows"

	"github.com/spf13/cobra"
)

var (
	logLimit     int
	logReverse   bool
	logUser      string
	logOperation string
	logSince     string
	logUntil     string
	logJSON      bool
)

func init() {
	logCmd.Flags().IntVarP(&logLimit, "number", "n", 0, "limit number of entries shown")
	logCmd.Flags().BoolVar(&logReverse, "reverse", false, "show most recent entries first")
	logCmd.Flags().StringVar(&logUser, "user", "", "filter by OS user")
	logCmd.Flags().StringVar(&logOperation, "operation", "", "filter by operation type (comma-separated)")
	logCmd.Flags().StringVar(&logSince, "since", "", "show entries on or after date (YYYY-MM-DD)")
	logCmd.Flags().StringVar(&logUntil, "until", "", "show entries on or before date (YYYY-MM-DD)")
	logCmd.Flags().BoolVar(&logJSON, "json", false, "output as JSON array")
}

func resetLogCommandState() {
	logLimit = 0
	logReverse = false
	logUser = ""
	logOperation = ""
	logSince = ""
	logUntil = ""
	logJSON = false
}

var logCmd = &cobra.Command{
	Use:   "log [case-dir]",
	Short: "View the audit log of a case",
	Long: `Displays the vault operations recorded for a case: who ran what and
when, and how many files were involved.

Examples:
  casevault vault log                              # View full log
  casevault vault log -n 10                        # Last 10 entries
  casevault vault log --reverse                    # Most recent first
  casevault vault log --operation rotate,export    # Filter by operation
  casevault vault log --since 2024-01-01 --json    # Filter by date, as JSON`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting log command")

		v, err := openVault(args)
		if err != nil {
			return reportEarly(err)
		}

		opts := workflows.LogOptions{
			AuditPath: v.AuditPath(),
			Limit:     logLimit,
			Reverse:   logReverse,
			User:      logUser,
		}
		if logOperation != "" {
			opts.Operations = strings.Split(logOperation, ",")
		}
		if opts.Since, err = parseLogDate("--since", logSince); err != nil {
			return reportEarly(err)
		}
		if opts.Until, err = parseLogDate("--until", logUntil); err != nil {
			return reportEarly(err)
		}
		if !opts.Until.IsZero() {
			// Include the whole day.
			opts.Until = opts.Until.Add(24*time.Hour - time.Nanosecond)
		}

		result, err := workflows.Log(cmd.Context(), opts)
		if errors.Is(err, kerrors.ErrNoFilesFound) {
			fmt.Println(ui.Info.Sprint("ℹ") + " No audit log found. Operations are logged once a vault command changes the case.")
			return nil
		}
		if err != nil {
			return reportEarly(err)
		}

		Logger.Debugf("Showing %d of %d audit entries", len(result.Entries), result.Total)

		if len(result.Entries) == 0 {
			fmt.Println("No audit log entries found matching the filters.")
			return nil
		}

		if logJSON {
			data, err := json.MarshalIndent(result.Entries, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal entries to JSON: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}

		for _, e := range result.Entries {
			fmt.Printf("%-19s  %-16s  %-17s  %s\n", formatLogTime(e.Timestamp), e.User, e.Operation, formatLogDetails(e))
		}
		return nil
	},
}

func parseLogDate(flag, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s date format invalid, use YYYY-MM-DD", flag)
	}
	return t, nil
}

func formatLogTime(ts string) string {
	t, ok := audit.ParseTimestamp(ts)
	if !ok {
		return ts
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func formatLogDetails(e audit.Entry) string {
	var parts []string
	if e.FilesCount > 0 {
		parts = append(parts, fmt.Sprintf("%d files", e.FilesCount))
	}
	if e.Bytes > 0 {
		parts = append(parts, ui.Bytes(e.Bytes))
	}
	if e.FailedCount > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", e.FailedCount))
	}
	if e.SkippedCount > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", e.SkippedCount))
	}
	if e.Deep {
		parts = append(parts, "deep")
	}
	if e.OutputPath != "" {
		parts = append(parts, "-> "+e.OutputPath)
	}
	if e.Error != "" {
		parts = append(parts, "error: "+e.Error)
	}
	return strings.Join(parts, ", ")
}
