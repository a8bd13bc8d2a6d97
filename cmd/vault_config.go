package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/PolarWolf314/casevault/internal/configs"
	"github.com/PolarWolf314/casevault/internal/ui"

	"github.com/spf13/cobra"
)

var (
	configShowJSON bool
	configWrite    bool
	configForce    bool
)

func init() {
	configCmd.Flags().BoolVar(&configShowJSON, "json", false, "output in JSON format")
	configCmd.Flags().BoolVar(&configWrite, "write", false, "write the built-in defaults to the config file")
	configCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing config file with --write")
}

func resetConfigCommandState() {
	configShowJSON = false
	configWrite = false
	configForce = false
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Display or create the vault configuration",
	Long: `Displays the effective vault configuration after the config file, the
env file and VAULT_* environment variables were applied.

With --write the built-in defaults are saved to the config file, by default
config.toml in the user's casevault config directory, as a starting point
for editing.

Examples:
  casevault vault config
  casevault vault config --json
  casevault vault config --write
  casevault vault config --write --config ./casevault.toml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting config command")

		if configWrite {
			return writeDefaultConfig()
		}

		if configShowJSON {
			data, err := json.MarshalIndent(vaultConfig, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal config to JSON: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}

		configPath, _ := resolveConfigFiles()
		fmt.Println(ui.Muted.Sprint("config file: " + configPath))
		return configs.EncodeTOML(os.Stdout, vaultConfig)
	},
}

func writeDefaultConfig() error {
	configPath, _ := resolveConfigFiles()
	if configPath == "" {
		return reportEarly(fmt.Errorf("no config directory, pass %s", ui.Flag.Sprint("--config")))
	}

	if _, err := os.Stat(configPath); err == nil && !configForce {
		fmt.Println(ui.ErrorLine(ui.Path.Sprint(configPath)+" already exists") + "\n" +
			ui.HintLine("Use "+ui.Flag.Sprint("--force")+" to overwrite it"))
		return nil
	}

	if err := configs.SaveTOML(configPath, configs.DefaultVaultConfig()); err != nil {
		return Logger.ErrorfAndReturn("failed to write %s: %v", configPath, err)
	}

	Logger.Infof("Wrote default configuration to %s", configPath)
	fmt.Println(ui.SuccessLine("Default configuration written to " + ui.Path.Sprint(configPath)))
	return nil
}
