package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	kerrors "github.com/PolarWolf314/casevault/internal/errors"
	"github.com/PolarWolf314/casevault/internal/ui"
	"github.com/PolarWolf314/casevault/internal/utils"
	"github.com/PolarWolf314/casevault/internal/vault"
	"github.com/PolarWolf314/casevault/internal/workflows"

	"github.com/briandowns/spinner"
)

const caseFileName = "case.json"

// stdinReader is shared by every password read so --password-stdin can
// supply several passwords, one per line.
var stdinReader *bufio.Reader

// startSpinner creates and starts a spinner with the given message when not in verbose or debug mode.
// Returns the spinner and a function that should be deferred to clean up.
//
// spinner.FinalMSG values do NOT need trailing newlines. The cleanup function
// calls ui.EnsureNewline() on the final message before printing it.
func startSpinner(message string) (*spinner.Spinner, func()) {
	Logger.Debugf("Starting spinner with message: %s", message)
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message
	s.Writer = os.Stderr

	if err := s.Color("cyan"); err != nil {
		// If we can't set spinner color, just continue without it.
		Logger.Warnf("Failed to set spinner color: %v", err)
	}

	quiet := !verbose && !debug
	if quiet {
		s.Start()
		// Ensure log output is discarded unless in verbose mode.
		log.SetOutput(io.Discard)
	} else {
		Logger.Infof("Running in verbose or debug mode: %s", message)
	}

	cleanup := func() {
		if quiet {
			log.SetOutput(os.Stderr)
		}

		finalMsg := ""
		if s.FinalMSG != "" {
			finalMsg = ui.EnsureNewline(s.FinalMSG)
			// Clear FinalMSG so s.Stop() doesn't print it.
			s.FinalMSG = ""
		}

		if quiet {
			s.Stop()
		}

		// Print final message to stdout (for tests to capture).
		if finalMsg != "" {
			fmt.Print(finalMsg)
		}
	}

	return s, cleanup
}

// openVault returns the vault for the case named by args, or for the nearest
// case above the working directory when args is empty.
func openVault(args []string) (*vault.Manager, error) {
	dir := ""
	if len(args) > 0 {
		dir = args[0]
	} else {
		root, err := utils.FindCaseRoot(".", vaultConfig.MetadataFile, caseFileName)
		if err != nil {
			return nil, err
		}
		if root == "" {
			return nil, fmt.Errorf("%w: no %s or %s in the current directory or its parents",
				kerrors.ErrFileNotFound, caseFileName, vaultConfig.MetadataFile)
		}
		dir = root
	}

	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", kerrors.ErrFileNotFound, dir)
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	Logger.Debugf("Opening case %s", dir)
	return vault.New(dir, sessions, vaultConfig, vault.WithLogger(Logger))
}

// readPassword returns the next line of stdin with --password-stdin, and
// otherwise prompts on the terminal.
func readPassword(prompt string) (string, error) {
	if passwordStdin {
		if stdinReader == nil {
			stdinReader = bufio.NewReader(os.Stdin)
		}
		return utils.ReadPasswordStdin(stdinReader)
	}
	return utils.ReadPassword(prompt)
}

// readNewPassword reads a password that is about to protect a vault. On a
// terminal it is asked for twice.
func readNewPassword(prompt string) (string, error) {
	password, err := readPassword(prompt)
	if err != nil {
		return "", err
	}
	if passwordStdin {
		return password, nil
	}

	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		return "", err
	}
	if confirm != password {
		return "", errPasswordMismatch
	}
	return password, nil
}

var errPasswordMismatch = errors.New("passwords do not match")

// userErrors are expected outcomes that are reported, not returned.
var userErrors = []error{
	kerrors.ErrInvalidPassword,
	kerrors.ErrWeakPassword,
	kerrors.ErrVaultNotFound,
	kerrors.ErrVaultAlreadyExists,
	kerrors.ErrVaultLocked,
	kerrors.ErrSessionExpired,
	kerrors.ErrVaultBusy,
	kerrors.ErrRotationPending,
	kerrors.ErrVaultCorrupted,
	kerrors.ErrNoFilesFound,
	kerrors.ErrFileNotFound,
	errPasswordMismatch,
}

func isUserError(err error) bool {
	for _, target := range userErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// errorMessage renders err as a final message, with a hint where the user
// can act on it.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, kerrors.ErrInvalidPassword):
		return ui.ErrorLine("Invalid password")
	case errors.Is(err, kerrors.ErrVaultNotFound):
		return ui.ErrorLine("This case is not encrypted") + "\n" +
			ui.HintLine("Run "+ui.Code.Sprint("casevault vault init")+" to encrypt it")
	case errors.Is(err, kerrors.ErrVaultAlreadyExists):
		return ui.ErrorLine("This case is already encrypted") + "\n" +
			ui.HintLine("Run "+ui.Code.Sprint("casevault vault encrypt")+" to encrypt newly added files")
	case errors.Is(err, kerrors.ErrVaultBusy):
		return ui.ErrorLine("Another casevault command is working on this case") + "\n" +
			ui.HintLine("Wait for it to finish and try again")
	case errors.Is(err, kerrors.ErrRotationPending):
		return ui.ErrorLine("A password rotation was interrupted") + "\n" +
			ui.HintLine("Run "+ui.Code.Sprint("casevault vault recover")+" first")
	case errors.Is(err, kerrors.ErrVaultCorrupted):
		return ui.ErrorLine("Vault metadata is corrupted") + "\n" + ui.Error.Sprint("Error: ") + err.Error()
	default:
		return ui.ErrorLine(err.Error())
	}
}

// fail reports err through the spinner. Expected outcomes return nil so the
// message is the only output; anything else is returned to cobra.
func fail(s *spinner.Spinner, err error) error {
	Logger.Debugf("Command failed: %v", err)
	s.FinalMSG = errorMessage(err)
	if isUserError(err) {
		return nil
	}
	return err
}

// reportEarly is fail for errors raised before the spinner starts.
func reportEarly(err error) error {
	Logger.Debugf("Command failed: %v", err)
	fmt.Print(ui.EnsureNewline(errorMessage(err)))
	if isUserError(err) {
		return nil
	}
	return err
}

// formatFileErrors lists per-file failures, at most five of them.
func formatFileErrors(errs []workflows.FileError) string {
	lines := make([]string, len(errs))
	for i, fe := range errs {
		lines[i] = fe.Error()
	}

	var b strings.Builder
	for _, line := range utils.TruncateList(lines, 5) {
		b.WriteString("\n    - ")
		b.WriteString(line)
	}
	return b.String()
}

// progressLogger reports workflow progress in verbose mode.
func progressLogger() workflows.ProgressFunc {
	return func(message string, current, total int) {
		Logger.Infof("[%d/%d] %s", current, total, message)
	}
}

// resetCommandFlags restores every subcommand flag to its default.
func resetCommandFlags() {
	resetInitCommandState()
	resetEncryptCommandState()
	resetVerifyCommandState()
	resetExportCommandState()
	resetCatCommandState()
	resetLogCommandState()
	resetConfigCommandState()
}
