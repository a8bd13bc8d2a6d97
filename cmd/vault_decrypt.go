package cmd

import (
	"errors"
	"fmt"

	kerrors "github.com/PolarWolf314/casevault/internal/errors"
	"github.com/PolarWolf314/casevault/internal/ui"
	"github.com/PolarWolf314/casevault/internal/workflows"

	"github.com/spf13/cobra"
)

var decryptCmd = &cobra.Command{
	Use:   "decrypt [case-dir]",
	Short: "Decrypt a case in place and remove its vault",
	Long: `Restores every encrypted file of the case to plaintext and deletes the
vault metadata.

If any file fails to decrypt the vault is kept, so the remaining files
stay recoverable with the same password.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting decrypt command")

		v, err := openVault(args)
		if err != nil {
			return reportEarly(err)
		}

		password, err := readPassword("Vault password: ")
		if err != nil {
			return reportEarly(err)
		}

		spinner, cleanup := startSpinner("Decrypting case...")
		defer cleanup()

		result, err := workflows.RemoveEncryption(cmd.Context(), workflows.RemoveOptions{
			Vault:    v,
			Password: password,
			Progress: progressLogger(),
		})
		if errors.Is(err, kerrors.ErrDecryptFailed) && result != nil {
			spinner.FinalMSG = ui.ErrorLine(fmt.Sprintf("%d files could not be decrypted:", len(result.Errors))) +
				formatFileErrors(result.Errors) + "\n" +
				ui.HintLine(fmt.Sprintf("%d files were restored, the vault was kept for the rest", len(result.Decrypted)))
			return nil
		}
		if err != nil {
			return fail(spinner, err)
		}

		spinner.FinalMSG = ui.SuccessLine(fmt.Sprintf("Case decrypted: %d files, %s", len(result.Decrypted), ui.Bytes(result.BytesDecrypted))) + "\n" +
			ui.WarningLine("The case is no longer encrypted")
		return nil
	},
}
