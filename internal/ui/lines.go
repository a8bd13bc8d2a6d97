package ui

import (
	"time"

	"github.com/dustin/go-humanize"
)

// SuccessLine marks msg as a successful outcome.
func SuccessLine(msg string) string {
	return Success.Sprint("✓") + " " + msg
}

// ErrorLine marks msg as a failure.
func ErrorLine(msg string) string {
	return Error.Sprint("✗") + " " + msg
}

// WarningLine marks msg as needing attention.
func WarningLine(msg string) string {
	return Warning.Sprint("⚠") + " " + msg
}

// HintLine marks msg as a suggested next step.
func HintLine(msg string) string {
	return Info.Sprint("→") + " " + msg
}

// Bytes renders n as a size such as "4.2 MiB".
func Bytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}

// Ago renders t relative to now, such as "3 days ago".
func Ago(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return humanize.Time(t)
}
