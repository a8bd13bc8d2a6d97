package cmd

import (
	"errors"
	"fmt"

	"github.com/PolarWolf314/casevault/internal/ui"
	"github.com/PolarWolf314/casevault/internal/workflows"

	"github.com/spf13/cobra"
)

var (
	exportOutput  string
	exportArchive string
)

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "directory to receive a decrypted copy of the case")
	exportCmd.Flags().StringVar(&exportArchive, "archive", "", "path of a .tar.gz archive to receive a decrypted copy of the case")
}

func resetExportCommandState() {
	exportOutput = ""
	exportArchive = ""
}

var exportCmd = &cobra.Command{
	Use:   "export [case-dir]",
	Short: "Write a decrypted copy of a case",
	Long: `Decrypts every artifact of the case into a new directory or a gzipped
tar archive. The case itself is not modified.

The destination must be outside the case directory.

Examples:
  casevault vault export --output /mnt/review/2024-0042
  casevault vault export ./cases/2024-0042 --archive 2024-0042.tar.gz`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting export command")

		if (exportOutput == "") == (exportArchive == "") {
			return reportEarly(errors.New("exactly one of --output or --archive is required"))
		}

		v, err := openVault(args)
		if err != nil {
			return reportEarly(err)
		}

		password, err := readPassword("Vault password: ")
		if err != nil {
			return reportEarly(err)
		}

		spinner, cleanup := startSpinner("Exporting case...")
		defer cleanup()

		result, err := workflows.Export(cmd.Context(), workflows.ExportOptions{
			Vault:       v,
			Password:    password,
			OutputDir:   exportOutput,
			ArchivePath: exportArchive,
			Progress:    progressLogger(),
		})
		if err != nil {
			return fail(spinner, err)
		}

		msg := ui.SuccessLine("Case exported to "+ui.Path.Sprint(result.OutputPath)) + "\n" +
			fmt.Sprintf("  %d files decrypted (%s), %d files copied", result.FilesDecrypted, ui.Bytes(result.BytesDecrypted), result.FilesCopied)
		if len(result.Errors) > 0 {
			msg += "\n" + ui.WarningLine(fmt.Sprintf("%d files could not be exported:", len(result.Errors))) +
				formatFileErrors(result.Errors)
		}
		msg += "\n" + ui.WarningLine("The export contains plaintext evidence, store it accordingly")
		spinner.FinalMSG = msg
		return nil
	},
}
