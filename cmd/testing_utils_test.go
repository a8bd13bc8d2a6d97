package cmd

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

const (
	testPassword    = "CorrectHorseBattery1"
	testNewPassword = "Tr0ubadour&3-Rotated"
)

const testConfig = `pbkdf2_iterations = 1000
chunk_size = 1024
streaming_threshold = 4096
session_timeout_minutes = 5
`

// testCase is a plaintext case directory with a config file next to it.
type testCase struct {
	dir    string
	config string
}

// newTestCase creates a plaintext case with a small config that keeps key
// derivation fast.
func newTestCase(t *testing.T) testCase {
	t.Helper()
	t.Setenv("NO_COLOR", "1")

	root := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(root, "xdg"))
	tc := testCase{
		dir:    filepath.Join(root, "case-2024-0042"),
		config: filepath.Join(root, "config.toml"),
	}

	files := map[string][]byte{
		"case.json":               []byte(`{"case_number":"2024-0042","status":"open"}`),
		"extracted/statement.txt": []byte("I saw nothing"),
		"extracted/bodycam.bin":   bytes.Repeat([]byte{0xca, 0xfe}, 5000),
		"reports/summary.md":      []byte("# Summary"),
		"notes.txt":               []byte("investigator notes"),
	}
	for rel, data := range files {
		path := filepath.Join(tc.dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("Failed to create directory for %s: %v", rel, err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", rel, err)
		}
	}
	if err := os.WriteFile(tc.config, []byte(testConfig), 0600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	return tc
}

func (tc testCase) path(rel string) string {
	return filepath.Join(tc.dir, filepath.FromSlash(rel))
}

// run executes `casevault vault <args>` against the case with stdin as the
// piped password input.
func (tc testCase) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	ResetGlobalState()

	rootCmd := &cobra.Command{Use: "casevault", SilenceUsage: true}
	rootCmd.AddCommand(GetVaultCmd())

	full := append([]string{"vault"}, args...)
	full = append(full, "--config", tc.config)
	if stdin != "" {
		full = append(full, "--password-stdin")
	}
	rootCmd.SetArgs(full)

	restore := withStdin(t, stdin)
	defer restore()

	return captureOutput(func() error {
		return rootCmd.ExecuteContext(t.Context())
	})
}

// withStdin replaces os.Stdin with a pipe holding input.
func withStdin(t *testing.T, input string) func() {
	t.Helper()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Failed to create stdin pipe: %v", err)
	}
	if _, err := w.WriteString(input); err != nil {
		t.Fatalf("Failed to write stdin: %v", err)
	}
	w.Close()

	original := os.Stdin
	os.Stdin = r
	return func() {
		os.Stdin = original
		r.Close()
	}
}

// captureOutput captures both stdout and stderr during function execution.
func captureOutput(fn func() error) (string, error) {
	originalStdout := os.Stdout
	originalStderr := os.Stderr

	stdoutReader, stdoutWriter, _ := os.Pipe()
	stderrReader, stderrWriter, _ := os.Pipe()

	os.Stdout = stdoutWriter
	os.Stderr = stderrWriter

	stdoutChan := make(chan string, 1)
	stderrChan := make(chan string, 1)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, stdoutReader)
		stdoutChan <- buf.String()
	}()
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, stderrReader)
		stderrChan <- buf.String()
	}()

	err := fn()

	stdoutWriter.Close()
	stderrWriter.Close()

	os.Stdout = originalStdout
	os.Stderr = originalStderr

	return <-stdoutChan + <-stderrChan, err
}

func assertContains(t *testing.T, output, want string) {
	t.Helper()
	if !strings.Contains(output, want) {
		t.Errorf("Expected output to contain %q, got:\n%s", want, output)
	}
}

func assertExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected %s to exist: %v", path, err)
	}
}

func assertMissing(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Expected %s to be absent, stat returned: %v", path, err)
	}
}
