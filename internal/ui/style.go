package ui

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

// Style renders one kind of CLI text. Without color it falls back to a
// plain decoration so the meaning survives in logs and pipes.
type Style struct {
	color       *color.Color
	open, close string
}

func newStyle(attr color.Attribute, open, close string) Style {
	return Style{color: color.New(attr), open: open, close: close}
}

// Sprint renders its arguments, joined as fmt.Sprint does.
func (s Style) Sprint(a ...any) string {
	return s.render(fmt.Sprint(a...))
}

// Sprintf renders a format string.
func (s Style) Sprintf(format string, a ...any) string {
	return s.render(fmt.Sprintf(format, a...))
}

func (s Style) render(text string) string {
	if !colorEnabled() {
		return s.open + text + s.close
	}
	return s.color.Sprint(text)
}

// EnsureNewline returns s with a trailing newline.
func EnsureNewline(s string) string {
	if len(s) == 0 || s[len(s)-1] != '\n' {
		return s + "\n"
	}
	return s
}

// colorEnabled honors NO_COLOR (https://no-color.org/) as well as
// fatih/color's terminal detection.
func colorEnabled() bool {
	if _, set := os.LookupEnv("NO_COLOR"); set {
		return false
	}
	return !color.NoColor
}

var (
	// Code is a command the user can run: yellow, or `backticks`.
	Code = newStyle(color.FgYellow, "`", "`")

	// Path is a case file or directory: yellow.
	Path = newStyle(color.FgYellow, "", "")

	// Flag is a command-line flag: yellow.
	Flag = newStyle(color.FgYellow, "", "")

	// Success, Error and Warning color the outcome markers of status lines.
	Success = newStyle(color.FgGreen, "", "")
	Error   = newStyle(color.FgRed, "", "")
	Warning = newStyle(color.FgYellow, "", "")

	// Info colors hints and notices: cyan.
	Info = newStyle(color.FgCyan, "", "")

	// Muted is secondary detail such as scheme counts: gray, or (parentheses).
	Muted = newStyle(color.FgHiBlack, "(", ")")
)
