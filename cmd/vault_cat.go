package cmd

import (
	"io"

	"github.com/PolarWolf314/casevault/internal/access"
	"github.com/PolarWolf314/casevault/internal/vault"

	"github.com/spf13/cobra"
)

var catCase string

func init() {
	catCmd.Flags().StringVar(&catCase, "case", "", "case directory (default: the case containing the working directory)")
}

func resetCatCommandState() {
	catCase = ""
}

var catCmd = &cobra.Command{
	Use:   "cat <file>",
	Short: "Print a case file, decrypting it if needed",
	Long: `Writes the plaintext of a case file to stdout. The file is named by its
plaintext path; its encrypted counterpart is used when the plaintext is
absent. Nothing is written to disk.

Examples:
  casevault vault cat case.json | jq .status
  casevault vault cat extracted/bodycam.mp4 --case ./cases/2024-0042 > clip.mp4`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting cat command")

		var caseArgs []string
		if catCase != "" {
			caseArgs = []string{catCase}
		}
		v, err := openVault(caseArgs)
		if err != nil {
			return reportEarly(err)
		}

		password := ""
		if v.IsEncrypted() {
			if password, err = readPassword("Vault password: "); err != nil {
				return reportEarly(err)
			}
		}

		err = access.With(cmd.Context(), v, access.Options{Password: password, Logger: Logger}, func(a *access.Accessor) error {
			return catFile(cmd, v, a, args[0])
		})
		if err != nil {
			return reportEarly(err)
		}
		return nil
	},
}

func catFile(cmd *cobra.Command, v *vault.Manager, a *access.Accessor, path string) error {
	file, err := a.GetFilePath(path)
	if err != nil {
		return err
	}
	Logger.Debugf("Reading %s from case %s", file.Name(), v.CaseDir())

	r, err := file.Open(cmd.Context())
	if err != nil {
		return err
	}
	defer r.Close()

	_, err = io.Copy(cmd.OutOrStdout(), r)
	return err
}
