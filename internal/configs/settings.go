package configs

import (
	"fmt"
	"os"
	"path/filepath"
)

// UserSettings holds per-user locations used by the CLI.
type UserSettings struct {
	UserConfigsPath string
	ConfigFile      string
	EnvFile         string
}

// NewUserSettings resolves the user's casevault configuration directory.
// XDG_CONFIG_HOME takes precedence over the platform default.
func NewUserSettings() (*UserSettings, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("error getting config directory: %w", err)
		}
		configDir = dir
	}

	userConfigsPath := filepath.Join(configDir, "casevault")

	return &UserSettings{
		UserConfigsPath: userConfigsPath,
		ConfigFile:      filepath.Join(userConfigsPath, "config.toml"),
		EnvFile:         filepath.Join(userConfigsPath, ".env"),
	}, nil
}
