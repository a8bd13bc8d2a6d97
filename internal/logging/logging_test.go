package logger

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestLogger_RespectsVerbosity(t *testing.T) {
	var out, errOut bytes.Buffer
	l := Logger{Out: &out, ErrOut: &errOut}

	l.Infof("info %d", 1)
	l.Debugf("debug %d", 2)
	l.Warnf("warn %d", 3)
	if out.Len() != 0 || errOut.Len() != 0 {
		t.Fatalf("Expected silent logger, got stdout=%q stderr=%q", out.String(), errOut.String())
	}

	l.WarnfAlways("critical")
	if !strings.Contains(errOut.String(), "critical") {
		t.Errorf("Expected WarnfAlways output, got %q", errOut.String())
	}
}

func TestLogger_DebugShowsEverything(t *testing.T) {
	var out, errOut bytes.Buffer
	l := Logger{Debug: true, Out: &out, ErrOut: &errOut}

	l.Infof("info")
	l.Debugf("debug")
	l.Errorf("error")

	if !strings.Contains(out.String(), "info") || !strings.Contains(out.String(), "debug") {
		t.Errorf("Expected info and debug on stdout, got %q", out.String())
	}
	if !strings.Contains(errOut.String(), "error") {
		t.Errorf("Expected error on stderr, got %q", errOut.String())
	}
}

func TestLogger_ErrorfAndReturnWraps(t *testing.T) {
	sentinel := errors.New("sentinel")
	l := Logger{Out: &bytes.Buffer{}, ErrOut: &bytes.Buffer{}}

	err := l.ErrorfAndReturn("context: %w", sentinel)
	if !errors.Is(err, sentinel) {
		t.Errorf("Expected wrapped sentinel, got %v", err)
	}
}
