package cmd

import (
	"fmt"
	"strings"

	"github.com/PolarWolf314/casevault/internal/ui"
	"github.com/PolarWolf314/casevault/internal/utils"
	"github.com/PolarWolf314/casevault/internal/workflows"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status [case-dir]",
	Short: "Show the encryption state of a case",
	Long: `Shows whether a case is encrypted, how its files are stored, which
selected files are still plaintext and whether interrupted work needs
recovery. No password is needed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting status command")

		v, err := openVault(args)
		if err != nil {
			return reportEarly(err)
		}

		result, err := workflows.Status(cmd.Context(), workflows.StatusOptions{Vault: v})
		if err != nil {
			return reportEarly(err)
		}

		fmt.Print(formatStatus(result))
		return nil
	},
}

func formatStatus(r *workflows.StatusResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Case: %s\n", ui.Path.Sprint(r.CaseDir))

	if !r.Encrypted {
		b.WriteString("Vault: " + ui.Warning.Sprint("not encrypted") + "\n")
		b.WriteString(ui.HintLine("Run "+ui.Code.Sprint("casevault vault init")+" to encrypt this case") + "\n")
		return b.String()
	}

	b.WriteString("Vault: " + ui.Success.Sprint("encrypted") + "\n")
	if meta := r.Metadata; meta != nil {
		fmt.Fprintf(&b, "  %s, %s with %d iterations\n", meta.Algorithm, meta.KeyDerivation, meta.Iterations)
		fmt.Fprintf(&b, "  created %s\n", ui.Ago(meta.CreatedAt))
	}

	fmt.Fprintf(&b, "Artifacts: %d %s\n", r.Artifacts(),
		ui.Muted.Sprint(fmt.Sprintf("%d token, %d stream", r.TokenArtifacts, r.StreamArtifacts)))
	if r.UnknownArtifacts > 0 {
		b.WriteString(ui.WarningLine(fmt.Sprintf("%d artifacts have an unknown format", r.UnknownArtifacts)) + "\n")
	}

	if len(r.Unencrypted) > 0 {
		b.WriteString(ui.WarningLine(fmt.Sprintf("%d selected files are still plaintext:", len(r.Unencrypted))))
		b.WriteString(utils.FormatPaths(utils.TruncateList(r.Unencrypted, 10)))
		b.WriteString(ui.HintLine("Run "+ui.Code.Sprint("casevault vault encrypt")+" to encrypt them") + "\n")
	}

	if r.NeedsRecovery() {
		if r.RotationPending {
			b.WriteString(ui.WarningLine("A password rotation was interrupted after its commit point") + "\n")
		}
		if len(r.Leftovers) > 0 {
			b.WriteString(ui.WarningLine(fmt.Sprintf("%d staging files were left by interrupted work:", len(r.Leftovers))))
			b.WriteString(utils.FormatPaths(utils.TruncateList(r.Leftovers, 10)))
		}
		b.WriteString(ui.HintLine("Run "+ui.Code.Sprint("casevault vault recover")+" to clean up") + "\n")
	}

	return b.String()
}
