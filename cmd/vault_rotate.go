package cmd

import (
	"errors"
	"fmt"

	kerrors "github.com/PolarWolf314/casevault/internal/errors"
	"github.com/PolarWolf314/casevault/internal/ui"
	"github.com/PolarWolf314/casevault/internal/workflows"

	"github.com/spf13/cobra"
)

var rotateCmd = &cobra.Command{
	Use:   "rotate [case-dir]",
	Short: "Change the vault password",
	Long: `Re-encrypts every file of the case under a key derived from a new
password.

All files are re-encrypted to staging files and verified first. If any of
them fails, the vault is left unchanged. If the command is interrupted after
every file was staged, run 'casevault vault recover' to finish the rotation.

With --password-stdin the current password is read from the first line and
the new password from the second.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting rotate command")

		v, err := openVault(args)
		if err != nil {
			return reportEarly(err)
		}

		oldPassword, err := readPassword("Current password: ")
		if err != nil {
			return reportEarly(err)
		}
		newPassword, err := readNewPassword("New password: ")
		if err != nil {
			return reportEarly(err)
		}
		if newPassword == oldPassword {
			return reportEarly(errors.New("the new password must differ from the current one"))
		}

		spinner, cleanup := startSpinner("Rotating vault password...")
		defer cleanup()

		result, err := workflows.RotatePassword(cmd.Context(), workflows.RotateOptions{
			Vault:       v,
			OldPassword: oldPassword,
			NewPassword: newPassword,
			Progress:    progressLogger(),
		})
		if errors.Is(err, kerrors.ErrEncryptFailed) && result != nil {
			spinner.FinalMSG = ui.ErrorLine(fmt.Sprintf("Rotation abandoned, %d files could not be re-encrypted:", len(result.Errors))) +
				formatFileErrors(result.Errors) + "\n" +
				ui.HintLine("The vault still uses the current password")
			return nil
		}
		if err != nil {
			return fail(spinner, err)
		}

		spinner.FinalMSG = ui.SuccessLine(fmt.Sprintf("Password changed, %d files re-encrypted", len(result.Rotated))) + "\n" +
			ui.HintLine("The old password no longer opens this case")
		return nil
	},
}
