// Package utils provides shared utility functions for the casevault CLI.
//
// # Filesystem Utilities
//
//   - FindCaseRoot: walks up directories to find a case directory
//
// # System Utilities
//
//   - CurrentUser: returns the login name recorded in audit entries
//
// # String Utilities
//
//   - FormatPaths: formats file paths for human-readable output
//   - TruncateList: shortens long lists for display
//
// # I/O Utilities
//
//   - ReadPasswordStdin: reads a password piped on standard input
//
// # Terminal Utilities
//
//   - ReadPassword: prompts for a password without echo
//   - IsTerminal: checks if stdin is a terminal
package utils
