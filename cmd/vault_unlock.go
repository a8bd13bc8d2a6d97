package cmd

import (
	"fmt"
	"time"

	"github.com/PolarWolf314/casevault/internal/session"
	"github.com/PolarWolf314/casevault/internal/ui"

	"github.com/spf13/cobra"
)

var unlockCmd = &cobra.Command{
	Use:   "unlock [case-dir]",
	Short: "Check a password against the vault",
	Long: `Derives the vault key from a password and checks it against the vault
metadata without touching any file.

Keys only live for the duration of a command, so this is mainly useful to
confirm a password before a long operation.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting unlock command")

		v, err := openVault(args)
		if err != nil {
			return reportEarly(err)
		}

		password, err := readPassword("Vault password: ")
		if err != nil {
			return reportEarly(err)
		}

		spinner, cleanup := startSpinner("Deriving vault key...")
		defer cleanup()

		s, err := v.Unlock(password, session.UseDefaultTimeout)
		if err != nil {
			return fail(spinner, err)
		}
		defer v.Lock()

		msg := ui.SuccessLine("Password accepted for " + ui.Path.Sprint(v.CaseDir()))
		if remaining, ok := s.TimeRemaining(sessions.Now()); ok {
			msg += "\n" + ui.Muted.Sprint(fmt.Sprintf("sessions expire after %s without access", remaining.Round(time.Second)))
		} else {
			msg += "\n" + ui.Muted.Sprint("sessions never expire")
		}
		spinner.FinalMSG = msg
		return nil
	},
}
