package cmd

import (
	"fmt"

	"github.com/PolarWolf314/casevault/internal/ui"
	"github.com/PolarWolf314/casevault/internal/workflows"

	"github.com/spf13/cobra"
)

var (
	verifyDeep    bool
	verifyWorkers int
)

func init() {
	verifyCmd.Flags().BoolVar(&verifyDeep, "deep", false, "authenticate every chunk of streamed files")
	verifyCmd.Flags().IntVar(&verifyWorkers, "workers", 0, "number of files checked at once (default: number of CPUs)")
}

func resetVerifyCommandState() {
	verifyDeep = false
	verifyWorkers = 0
}

var verifyCmd = &cobra.Command{
	Use:   "verify [case-dir]",
	Short: "Check that every encrypted file decrypts",
	Long: `Authenticates every artifact of the case under the vault key without
writing any plaintext.

Streamed files are checked up to their first chunk unless --deep is given.

Examples:
  casevault vault verify
  casevault vault verify ./cases/2024-0042 --deep --workers 4`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting verify command")

		if verifyWorkers < 0 {
			return reportEarly(fmt.Errorf("--workers must not be negative, got %d", verifyWorkers))
		}

		v, err := openVault(args)
		if err != nil {
			return reportEarly(err)
		}

		password, err := readPassword("Vault password: ")
		if err != nil {
			return reportEarly(err)
		}

		spinner, cleanup := startSpinner("Verifying encrypted files...")
		defer cleanup()

		result, err := workflows.VerifyIntegrity(cmd.Context(), workflows.VerifyOptions{
			Vault:    v,
			Password: password,
			Deep:     verifyDeep,
			Workers:  verifyWorkers,
			Progress: progressLogger(),
		})
		if err != nil {
			return fail(spinner, err)
		}

		mode := "first chunk of streamed files"
		if result.Deep {
			mode = "every chunk"
		}
		detail := ui.Muted.Sprint(fmt.Sprintf("%d token, %d stream, %s", result.TokenFiles, result.StreamFiles, mode))

		if result.FilesFailed > 0 {
			spinner.FinalMSG = ui.ErrorLine(fmt.Sprintf("%d of %d files failed verification", result.FilesFailed, result.FilesVerified+result.FilesFailed)) +
				formatFileErrors(result.Errors)
			return fmt.Errorf("%d files failed verification", result.FilesFailed)
		}

		spinner.FinalMSG = ui.SuccessLine(fmt.Sprintf("All %d files verified", result.FilesVerified)) + " " + detail
		return nil
	},
}
