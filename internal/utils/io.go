package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ReadPasswordStdin reads the next password line from r, which must wrap
// stdin. Reuse the same reader to read several passwords.
// Returns an error if stdin is a terminal (no piped data) or the line is empty.
func ReadPasswordStdin(r *bufio.Reader) (string, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat stdin: %w", err)
	}

	// Check if stdin is a terminal (no piped data).
	// If ModeCharDevice is set, stdin is connected to a terminal.
	if (stat.Mode() & os.ModeCharDevice) != 0 {
		return "", fmt.Errorf("no data provided on stdin (hint: pipe the password to this command)")
	}

	return ReadPasswordLine(r)
}

// ReadPasswordLine reads one line from r without its line ending.
func ReadPasswordLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", fmt.Errorf("password is empty")
	}
	return line, nil
}
