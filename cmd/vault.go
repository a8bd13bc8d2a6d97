package cmd

import (
	"github.com/PolarWolf314/casevault/internal/configs"
	logger "github.com/PolarWolf314/casevault/internal/logging"
	"github.com/PolarWolf314/casevault/internal/session"

	"github.com/spf13/cobra"
)

var (
	verbose       bool
	debug         bool
	configFile    string
	envFile       string
	passwordStdin bool

	Logger      logger.Logger
	vaultConfig = configs.DefaultVaultConfig()
	sessions    = session.NewManager()

	VaultCmd = &cobra.Command{
		Use:   "vault",
		Short: "Manage encrypted case vaults",
		Long: `Encrypts case directories at rest with a password-derived key.

Small files are stored as authenticated tokens and large files as chunked
AES-256-GCM streams. Keys are held in memory only for the duration of a
command.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			Logger = logger.Logger{
				Verbose: verbose,
				Debug:   debug,
			}
			Logger.Debugf("Initializing vault command with verbose=%t, debug=%t", verbose, debug)

			configPath, envPath := resolveConfigFiles()
			Logger.Debugf("Loading configuration from %s and %s", configPath, envPath)
			cfg, err := configs.Load(configs.LoadOptions{
				ConfigFile: configPath,
				EnvFile:    envPath,
			})
			if err != nil {
				return Logger.ErrorfAndReturn("failed to load configuration: %v", err)
			}
			vaultConfig = cfg

			sessions = session.NewManager(
				session.WithDefaultTimeout(cfg.SessionTimeout()),
				session.WithLogger(Logger),
			)
			return nil
		},
	}
)

func init() {
	VaultCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	VaultCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug output")
	VaultCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to a TOML configuration file")
	VaultCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "path to a dotenv file with VAULT_* overrides")
	VaultCmd.PersistentFlags().BoolVar(&passwordStdin, "password-stdin", false, "read passwords from stdin, one per line")

	VaultCmd.AddCommand(initCmd)
	VaultCmd.AddCommand(encryptCmd)
	VaultCmd.AddCommand(unlockCmd)
	VaultCmd.AddCommand(statusCmd)
	VaultCmd.AddCommand(verifyCmd)
	VaultCmd.AddCommand(exportCmd)
	VaultCmd.AddCommand(rotateCmd)
	VaultCmd.AddCommand(decryptCmd)
	VaultCmd.AddCommand(catCmd)
	VaultCmd.AddCommand(recoverCmd)
	VaultCmd.AddCommand(logCmd)
	VaultCmd.AddCommand(configCmd)
}

// resolveConfigFiles returns the --config and --env-file flags, falling back
// to the files in the user's casevault config directory.
func resolveConfigFiles() (configPath, envPath string) {
	configPath, envPath = configFile, envFile
	if configPath != "" && envPath != "" {
		return configPath, envPath
	}

	settings, err := configs.NewUserSettings()
	if err != nil {
		Logger.Debugf("No user config directory: %v", err)
		return configPath, envPath
	}
	if configPath == "" {
		configPath = settings.ConfigFile
	}
	if envPath == "" {
		envPath = settings.EnvFile
	}
	return configPath, envPath
}

// Helper functions for testing

// GetVaultCmd returns the VaultCmd for testing.
func GetVaultCmd() *cobra.Command {
	return VaultCmd
}

// ResetGlobalState resets all global variables to their default values for testing.
func ResetGlobalState() {
	verbose = false
	debug = false
	configFile = ""
	envFile = ""
	passwordStdin = false
	stdinReader = nil
	vaultConfig = configs.DefaultVaultConfig()
	sessions.Reset()
	resetCommandFlags()
}
