package utils

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// ReadPassword prompts on stderr for a password without echoing input.
// Returns an error if stdin is not a terminal.
func ReadPassword(prompt string) (string, error) {
	if !IsTerminal() {
		return "", fmt.Errorf("cannot read password: stdin is not a terminal (hint: use --password-stdin)")
	}

	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr) // Add newline after hidden input

	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	return string(password), nil
}

// IsTerminal returns true if stdin is a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}
