// Package ui provides semantic text formatting for CLI output.
//
// Each Style renders one kind of content according to the terminal's
// capabilities. When colors are available, content is colorized. When
// NO_COLOR is set or the terminal doesn't support colors, text-based
// decorations (backticks, parentheses) are used instead.
//
// # Styles
//
// Pick the style by what the text is:
//
//	ui.Code.Sprint("casevault vault unlock")  // Commands and code
//	ui.Path.Sprint("extracted/audio.wav.enc") // File paths
//	ui.Success.Sprint("✓")                     // Success indicators
//	ui.Error.Sprint("✗")                       // Error indicators
//	ui.Warning.Sprint("[dry-run]")             // Warnings
//	ui.Info.Sprint("→")                        // Informational hints
//	ui.Muted.Sprint("optional")               // De-emphasized text
//
// # Status Lines
//
// Commands report outcomes as single marked lines:
//
//	ui.SuccessLine("Vault unlocked")           // ✓ Vault unlocked
//	ui.ErrorLine("Invalid password")           // ✗ Invalid password
//	ui.HintLine("Run " + ui.Code.Sprint(...))  // → Run ...
//
// Bytes and Ago render sizes and timestamps for humans.
//
// # Color Behavior
//
// Colors are disabled when:
//   - NO_COLOR environment variable is set (any value)
//   - Terminal doesn't support colors (TERM=dumb, not a TTY)
//
// When colors are disabled, styles fall back to text decorations:
//   - Code: `backticks`
//   - Muted: (parentheses)
//   - Others: no decoration (self-evident from context)
package ui
