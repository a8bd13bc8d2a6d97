package cmd

import (
	"fmt"

	"github.com/PolarWolf314/casevault/internal/ui"
	"github.com/PolarWolf314/casevault/internal/utils"
	"github.com/PolarWolf314/casevault/internal/workflows"

	"github.com/spf13/cobra"
)

var (
	encryptFiles  []string
	encryptDryRun bool
)

func init() {
	encryptCmd.Flags().StringSliceVarP(&encryptFiles, "files", "f", nil, "files, directories or globs to encrypt, relative to the case root")
	encryptCmd.Flags().BoolVar(&encryptDryRun, "dry-run", false, "list the files that would be encrypted without changing anything")
}

func resetEncryptCommandState() {
	encryptFiles = nil
	encryptDryRun = false
}

var encryptCmd = &cobra.Command{
	Use:   "encrypt [case-dir]",
	Short: "Encrypt files added to an encrypted case",
	Long: `Encrypts plaintext files that were added to a case after it was
encrypted, such as newly extracted evidence.

Without --files every plaintext file selected by the configuration is
encrypted.

Examples:
  # Encrypt everything that is still plaintext
  casevault vault encrypt

  # Encrypt one directory
  casevault vault encrypt --files extracted/phone-2

  # Encrypt with a glob
  casevault vault encrypt --files "extracted/**/*.db"`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting encrypt command")

		v, err := openVault(args)
		if err != nil {
			return reportEarly(err)
		}

		password := ""
		if !encryptDryRun {
			password, err = readPassword("Vault password: ")
			if err != nil {
				return reportEarly(err)
			}
		}

		spinner, cleanup := startSpinner("Encrypting files...")
		defer cleanup()

		result, err := workflows.EncryptFiles(cmd.Context(), workflows.EncryptFilesOptions{
			Vault:        v,
			Password:     password,
			FilePatterns: encryptFiles,
			DryRun:       encryptDryRun,
			Progress:     progressLogger(),
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

		if len(result.Encrypted) == 0 && len(result.Errors) == 0 {
			spinner.FinalMSG = ui.SuccessLine("Nothing to encrypt, every selected file is already encrypted")
			return nil
		}

		msg := ui.SuccessLine(fmt.Sprintf("Encrypted %d files, %s", len(result.Encrypted), ui.Bytes(result.BytesEncrypted)))
		if len(result.Errors) > 0 {
			msg += "\n" + ui.WarningLine(fmt.Sprintf("%d files were left unencrypted:", len(result.Skipped))) +
				formatFileErrors(result.Errors)
		}
		spinner.FinalMSG = msg
		return nil
	},
}
