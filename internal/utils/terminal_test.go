package utils

import (
	"os"
	"strings"
	"testing"
)

func TestReadPasswordRequiresTerminal(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Failed to create pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	original := os.Stdin
	os.Stdin = r
	defer func() { os.Stdin = original }()

	if IsTerminal() {
		t.Fatal("Expected a pipe not to be a terminal")
	}

	_, err = ReadPassword("Password: ")
	if err == nil {
		t.Fatal("Expected an error when stdin is not a terminal")
	}
	if !strings.Contains(err.Error(), "--password-stdin") {
		t.Errorf("Expected a --password-stdin hint, got %q", err.Error())
	}
}
