package utils

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
)

// FindCaseRoot traverses up from start to find the nearest directory that
// contains one of markers, such as case.json or vault.meta.
// Returns the directory if found, empty string otherwise.
// Stops searching when it reaches the user's home directory.
func FindCaseRoot(start string, markers ...string) (string, error) {
	currentDir, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", start, err)
	}

	// A missing home directory only disables the stop condition.
	homeDir, _ := os.UserHomeDir()

	for {
		// Stop searching at one level above home directory
		if homeDir != "" && currentDir == path.Join(homeDir, "..") {
			return "", nil
		}

		for _, marker := range markers {
			fileInfo, err := os.Stat(filepath.Join(currentDir, marker))
			if err == nil {
				if !fileInfo.IsDir() {
					return currentDir, nil
				}
			} else if !os.IsNotExist(err) {
				// Return any error that's not "file not found" (like permission issues)
				return "", fmt.Errorf("error checking for %s at %s: %w", marker, currentDir, err)
			}
		}

		parentDir := filepath.Dir(currentDir)

		// If we've reached the filesystem root without a match
		if parentDir == currentDir {
			return "", nil
		}
		currentDir = parentDir
	}
}
