package main

import (
	"fmt"
	"os"

	"github.com/PolarWolf314/casevault/cmd"

	"github.com/common-nighthawk/go-figure"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "casevault",
	Short: "casevault - password-based encryption at rest for forensic case directories.",
	Long: `casevault encrypts the files of a forensic case directory with a key
derived from a password, and gives tools transparent access to them.

Usage:
  casevault <command> [flags]

Available Commands:
  vault      Manage encrypted case vaults

Run 'casevault help <command>' for more details on a specific command.
`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		banner := figure.NewColorFigure("casevault", "alligator2", "green", true)
		banner.Print()
		fmt.Println()
		fmt.Println("Run 'casevault --help' to see available commands.")
	},
}

func init() {
	rootCmd.AddCommand(cmd.VaultCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
