package cmd

import (
	"fmt"

	"github.com/PolarWolf314/casevault/internal/ui"
	"github.com/PolarWolf314/casevault/internal/utils"
	"github.com/PolarWolf314/casevault/internal/workflows"

	"github.com/spf13/cobra"
)

var initDryRun bool

func init() {
	initCmd.Flags().BoolVar(&initDryRun, "dry-run", false, "list the files that would be encrypted without changing anything")
}

func resetInitCommandState() {
	initDryRun = false
}

var initCmd = &cobra.Command{
	Use:   "init [case-dir]",
	Short: "Encrypt an existing case and create its vault",
	Long: `Creates a vault for a plaintext case and encrypts every file selected by
the configuration.

Each file is encrypted to a staging file and verified before any original
is removed. If the command is interrupted, run 'casevault vault recover'.

Examples:
  # Encrypt the case in the current directory
  casevault vault init

  # Preview which files would be encrypted
  casevault vault init ./cases/2024-0042 --dry-run

  # Non-interactive use
  echo "$CASE_PASSWORD" | casevault vault init --password-stdin`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting init command")

		v, err := openVault(args)
		if err != nil {
			return reportEarly(err)
		}

		password := ""
		if !initDryRun {
			password, err = readNewPassword("Vault password: ")
			if err != nil {
				return reportEarly(err)
			}
		}

		spinner, cleanup := startSpinner("Encrypting case...")
		defer cleanup()

		result, err := workflows.EncryptCase(cmd.Context(), workflows.EncryptCaseOptions{
			Vault:    v,
			Password: password,
			DryRun:   initDryRun,
			Progress: progressLogger(),
		})
		if err != nil {
			return fail(spinner, err)
		}

		if result.DryRun {
			spinner.FinalMSG = ui.Info.Sprint("Dry run:") + fmt.Sprintf(" %d files would be encrypted", len(result.Encrypted)) +
				utils.FormatPaths(result.Encrypted) +
				ui.HintLine("Run without "+ui.Flag.Sprint("--dry-run")+" to encrypt them")
			return nil
		}

		msg := ui.SuccessLine(fmt.Sprintf("Case encrypted: %d files, %s", len(result.Encrypted), ui.Bytes(result.BytesEncrypted)))
		if len(result.Errors) > 0 {
			msg += "\n" + ui.WarningLine(fmt.Sprintf("%d files were left unencrypted:", len(result.Skipped))) +
				formatFileErrors(result.Errors) + "\n" +
				ui.HintLine("Fix the errors and run "+ui.Code.Sprint("casevault vault encrypt"))
		}
		spinner.FinalMSG = msg
		return nil
	},
}
