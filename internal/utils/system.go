package utils

import (
	"os"
	"os/user"
)

// CurrentUser returns the login name recorded in audit entries. When the
// user database is unavailable, as in minimal containers, it falls back to
// $USER or $USERNAME, and returns "" if neither is set.
func CurrentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	for _, key := range []string{"USER", "USERNAME"} {
		if name := os.Getenv(key); name != "" {
			return name
		}
	}
	return ""
}
