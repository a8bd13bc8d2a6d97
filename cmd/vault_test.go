package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestVaultLifecycle drives a case through the vault commands end to end.
func TestVaultLifecycle(t *testing.T) {
	tc := newTestCase(t)

	t.Run("InitDryRunChangesNothing", func(t *testing.T) {
		output, err := tc.run(t, "", "init", tc.dir, "--dry-run")
		if err != nil {
			t.Fatalf("Command failed: %v\nOutput: %s", err, output)
		}
		assertContains(t, output, "3 files would be encrypted")
		assertContains(t, output, "extracted/bodycam.bin")
		assertExists(t, tc.path("case.json"))
		assertMissing(t, tc.path("vault.meta"))
	})

	t.Run("Init", func(t *testing.T) {
		output, err := tc.run(t, testPassword+"\n", "init", tc.dir)
		if err != nil {
			t.Fatalf("Command failed: %v\nOutput: %s", err, output)
		}
		assertContains(t, output, "Case encrypted: 3 files")
		assertExists(t, tc.path("vault.meta"))
		assertExists(t, tc.path("case.json.enc"))
		assertExists(t, tc.path("extracted/bodycam.bin.enc"))
		assertMissing(t, tc.path("case.json"))
		assertExists(t, tc.path("notes.txt"))
		assertExists(t, tc.path("reports/summary.md"))
	})

	t.Run("InitTwiceIsRejected", func(t *testing.T) {
		output, err := tc.run(t, testPassword+"\n", "init", tc.dir)
		if err != nil {
			t.Fatalf("Command failed: %v\nOutput: %s", err, output)
		}
		assertContains(t, output, "already encrypted")
	})

	t.Run("Status", func(t *testing.T) {
		output, err := tc.run(t, "", "status", tc.dir)
		if err != nil {
			t.Fatalf("Command failed: %v\nOutput: %s", err, output)
		}
		assertContains(t, output, "Vault: encrypted")
		assertContains(t, output, "Artifacts: 3")
		assertContains(t, output, "2 token, 1 stream")
	})

	t.Run("UnlockWithWrongPassword", func(t *testing.T) {
		output, err := tc.run(t, "not-the-password\n", "unlock", tc.dir)
		if err != nil {
			t.Fatalf("Command failed: %v\nOutput: %s", err, output)
		}
		assertContains(t, output, "Invalid password")
	})

	t.Run("Unlock", func(t *testing.T) {
		output, err := tc.run(t, testPassword+"\n", "unlock", tc.dir)
		if err != nil {
			t.Fatalf("Command failed: %v\nOutput: %s", err, output)
		}
		assertContains(t, output, "Password accepted")
		assertContains(t, output, "sessions expire after 5m0s")
	})

	t.Run("Cat", func(t *testing.T) {
		output, err := tc.run(t, testPassword+"\n", "cat", "case.json", "--case", tc.dir)
		if err != nil {
			t.Fatalf("Command failed: %v\nOutput: %s", err, output)
		}
		assertContains(t, output, `"case_number":"2024-0042"`)
	})

	t.Run("EncryptNewEvidence", func(t *testing.T) {
		if err := os.WriteFile(tc.path("extracted/late.txt"), []byte("late evidence"), 0644); err != nil {
			t.Fatalf("Failed to write evidence: %v", err)
		}

		output, err := tc.run(t, testPassword+"\n", "encrypt", tc.dir)
		if err != nil {
			t.Fatalf("Command failed: %v\nOutput: %s", err, output)
		}
		assertContains(t, output, "Encrypted 1 files")
		assertExists(t, tc.path("extracted/late.txt.enc"))
		assertMissing(t, tc.path("extracted/late.txt"))
	})

	t.Run("VerifyDeep", func(t *testing.T) {
		output, err := tc.run(t, testPassword+"\n", "verify", tc.dir, "--deep", "--workers", "2")
		if err != nil {
			t.Fatalf("Command failed: %v\nOutput: %s", err, output)
		}
		assertContains(t, output, "All 4 files verified")
		assertContains(t, output, "every chunk")
	})

	t.Run("Rotate", func(t *testing.T) {
		output, err := tc.run(t, testPassword+"\n"+testNewPassword+"\n", "rotate", tc.dir)
		if err != nil {
			t.Fatalf("Command failed: %v\nOutput: %s", err, output)
		}
		assertContains(t, output, "Password changed, 4 files re-encrypted")

		output, err = tc.run(t, testPassword+"\n", "unlock", tc.dir)
		if err != nil {
			t.Fatalf("Command failed: %v\nOutput: %s", err, output)
		}
		assertContains(t, output, "Invalid password")

		output, err = tc.run(t, testNewPassword+"\n", "cat", "extracted/statement.txt", "--case", tc.dir)
		if err != nil {
			t.Fatalf("Command failed: %v\nOutput: %s", err, output)
		}
		assertContains(t, output, "I saw nothing")
	})

	t.Run("ExportArchive", func(t *testing.T) {
		archive := filepath.Join(filepath.Dir(tc.dir), "export.tar.gz")
		output, err := tc.run(t, testNewPassword+"\n", "export", tc.dir, "--archive", archive)
		if err != nil {
			t.Fatalf("Command failed: %v\nOutput: %s", err, output)
		}
		assertContains(t, output, "Case exported to")
		assertContains(t, output, "4 files decrypted")
		assertExists(t, archive)
	})

	t.Run("Recover", func(t *testing.T) {
		if err := os.WriteFile(tc.path("notes.txt.enc.partial"), []byte("abandoned"), 0600); err != nil {
			t.Fatalf("Failed to write staging file: %v", err)
		}

		output, err := tc.run(t, "", "recover", tc.dir)
		if err != nil {
			t.Fatalf("Command failed: %v\nOutput: %s", err, output)
		}
		assertContains(t, output, "Removed 1 staging files")
		assertMissing(t, tc.path("notes.txt.enc.partial"))

		output, err = tc.run(t, "", "recover", tc.dir)
		if err != nil {
			t.Fatalf("Command failed: %v\nOutput: %s", err, output)
		}
		assertContains(t, output, "Nothing to recover")
	})

	t.Run("Log", func(t *testing.T) {
		output, err := tc.run(t, "", "log", tc.dir, "--operation", "rotate,export")
		if err != nil {
			t.Fatalf("Command failed: %v\nOutput: %s", err, output)
		}
		assertContains(t, output, "rotate")
		assertContains(t, output, "export")
		if strings.Contains(output, "encrypt-case") {
			t.Errorf("Expected encrypt-case entries to be filtered out, got:\n%s", output)
		}
	})

	t.Run("Decrypt", func(t *testing.T) {
		output, err := tc.run(t, testNewPassword+"\n", "decrypt", tc.dir)
		if err != nil {
			t.Fatalf("Command failed: %v\nOutput: %s", err, output)
		}
		assertContains(t, output, "Case decrypted: 4 files")
		assertMissing(t, tc.path("vault.meta"))
		assertMissing(t, tc.path("extracted/bodycam.bin.enc"))

		got, err := os.ReadFile(tc.path("extracted/bodycam.bin"))
		if err != nil {
			t.Fatalf("Failed to read restored file: %v", err)
		}
		if !bytes.Equal(got, bytes.Repeat([]byte{0xca, 0xfe}, 5000)) {
			t.Errorf("Restored bodycam.bin does not match the original")
		}
	})
}

func TestVaultCommandsOnPlaintextCase(t *testing.T) {
	tc := newTestCase(t)

	t.Run("StatusSuggestsInit", func(t *testing.T) {
		output, err := tc.run(t, "", "status", tc.dir)
		if err != nil {
			t.Fatalf("Command failed: %v\nOutput: %s", err, output)
		}
		assertContains(t, output, "Vault: not encrypted")
		assertContains(t, output, "casevault vault init")
	})

	t.Run("VerifyReportsMissingVault", func(t *testing.T) {
		output, err := tc.run(t, testPassword+"\n", "verify", tc.dir)
		if err != nil {
			t.Fatalf("Command failed: %v\nOutput: %s", err, output)
		}
		assertContains(t, output, "This case is not encrypted")
	})

	t.Run("CatReadsPlaintext", func(t *testing.T) {
		output, err := tc.run(t, "", "cat", "notes.txt", "--case", tc.dir)
		if err != nil {
			t.Fatalf("Command failed: %v\nOutput: %s", err, output)
		}
		assertContains(t, output, "investigator notes")
	})

	t.Run("InitRejectsWeakPassword", func(t *testing.T) {
		output, err := tc.run(t, "short\n", "init", tc.dir)
		if err != nil {
			t.Fatalf("Command failed: %v\nOutput: %s", err, output)
		}
		assertMissing(t, tc.path("vault.meta"))
		if !strings.Contains(output, "✗") {
			t.Errorf("Expected an error line, got:\n%s", output)
		}
	})

	t.Run("ExportNeedsOneDestination", func(t *testing.T) {
		output, err := tc.run(t, "", "export", tc.dir)
		if err == nil {
			t.Fatalf("Expected export without a destination to fail, output: %s", output)
		}
		assertContains(t, output, "exactly one of --output or --archive")
	})
}

func TestOpenVaultFindsCaseFromSubdirectory(t *testing.T) {
	tc := newTestCase(t)
	ResetGlobalState()

	t.Chdir(tc.path("extracted"))

	v, err := openVault(nil)
	if err != nil {
		t.Fatalf("openVault failed: %v", err)
	}
	want, err := filepath.EvalSymlinks(tc.dir)
	if err != nil {
		t.Fatalf("Failed to resolve case dir: %v", err)
	}
	got, err := filepath.EvalSymlinks(v.CaseDir())
	if err != nil {
		t.Fatalf("Failed to resolve vault case dir: %v", err)
	}
	if got != want {
		t.Errorf("Expected case dir %s, got %s", want, got)
	}
}

func TestVaultConfig(t *testing.T) {
	tc := newTestCase(t)

	t.Run("ShowsEffectiveConfig", func(t *testing.T) {
		output, err := tc.run(t, "", "config", "--json")
		if err != nil {
			t.Fatalf("Command failed: %v\nOutput: %s", err, output)
		}
		assertContains(t, output, `"PBKDF2Iterations": 1000`)
		assertContains(t, output, `"ChunkSize": 1024`)
	})

	t.Run("WriteKeepsExistingFile", func(t *testing.T) {
		output, err := tc.run(t, "", "config", "--write")
		if err != nil {
			t.Fatalf("Command failed: %v\nOutput: %s", err, output)
		}
		assertContains(t, output, "already exists")

		data, err := os.ReadFile(tc.config)
		if err != nil {
			t.Fatalf("Failed to read config: %v", err)
		}
		if string(data) != testConfig {
			t.Errorf("Expected config file to be unchanged, got:\n%s", data)
		}
	})

	t.Run("WriteDefaults", func(t *testing.T) {
		if err := os.Remove(tc.config); err != nil {
			t.Fatalf("Failed to remove config: %v", err)
		}

		output, err := tc.run(t, "", "config", "--write")
		if err != nil {
			t.Fatalf("Command failed: %v\nOutput: %s", err, output)
		}
		assertContains(t, output, "Default configuration written")

		data, err := os.ReadFile(tc.config)
		if err != nil {
			t.Fatalf("Failed to read config: %v", err)
		}
		assertContains(t, string(data), "pbkdf2_iterations = 480000")
	})
}
