package utils

import (
	"fmt"
	"strings"

	"github.com/PolarWolf314/casevault/internal/ui"
)

// FormatPaths formats a slice of paths into a readable string.
func FormatPaths(paths []string) string {
	var b strings.Builder
	b.WriteString("\n")
	for _, path := range paths {
		b.WriteString("    - ")
		b.WriteString(ui.Path.Sprint(path))
		b.WriteString("\n")
	}
	return b.String()
}

// TruncateList returns at most limit items, replacing the rest with a
// single "... and N more" entry.
func TruncateList(items []string, limit int) []string {
	if limit <= 0 || len(items) <= limit {
		return items
	}
	out := append([]string(nil), items[:limit]...)
	return append(out, fmt.Sprintf("... and %d more", len(items)-limit))
}
