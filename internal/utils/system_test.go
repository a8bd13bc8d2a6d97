package utils

import (
	"os/user"
	"testing"
)

func TestCurrentUser(t *testing.T) {
	u, err := user.Current()
	if err != nil || u.Username == "" {
		t.Skip("no user database available")
	}

	if got := CurrentUser(); got != u.Username {
		t.Errorf("CurrentUser() = %q, want %q", got, u.Username)
	}
}
