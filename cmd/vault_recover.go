package cmd

import (
	"fmt"

	"github.com/PolarWolf314/casevault/internal/ui"
	"github.com/PolarWolf314/casevault/internal/utils"
	"github.com/PolarWolf314/casevault/internal/workflows"

	"github.com/spf13/cobra"
)

var recoverCmd = &cobra.Command{
	Use:   "recover [case-dir]",
	Short: "Clean up after an interrupted command",
	Long: `Brings a case back to a consistent state after an interrupted init,
encrypt or rotate. No password is needed.

A rotation that reached its commit point is finished, after which only the
new password opens the case. Staging files of work that never committed are
deleted; the files they were made from are intact.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting recover command")

		v, err := openVault(args)
		if err != nil {
			return reportEarly(err)
		}

		spinner, cleanup := startSpinner("Recovering case...")
		defer cleanup()

		result, err := workflows.RecoverInterrupted(cmd.Context(), workflows.RecoverOptions{Vault: v})
		if err != nil {
			return fail(spinner, err)
		}

		if !result.RotationCompleted && len(result.Removed) == 0 {
			spinner.FinalMSG = ui.SuccessLine("Nothing to recover")
			return nil
		}

		msg := ui.SuccessLine("Case recovered")
		if result.RotationCompleted {
			msg += "\n" + fmt.Sprintf("  Finished an interrupted password rotation (%d files)", result.Committed) + "\n" +
				ui.HintLine("Use the new password from now on")
		}
		if len(result.Removed) > 0 {
			msg += "\n" + fmt.Sprintf("  Removed %d staging files:", len(result.Removed)) +
				utils.FormatPaths(utils.TruncateList(result.Removed, 10))
		}
		spinner.FinalMSG = msg
		return nil
	},
}
