package access

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// File is a case file that can be read regardless of encryption.
type File interface {
	// Name returns the base name of the plaintext file.
	Name() string
	Exists() bool
	ReadBytes(ctx context.Context) ([]byte, error)
	ReadText(ctx context.Context) (string, error)
	Open(ctx context.Context) (io.ReadCloser, error)

	// Materialize returns a real filesystem path holding the plaintext.
	Materialize(ctx context.Context) (string, error)

	// Cleanup removes any plaintext written by Materialize.
	Cleanup() error
}

// PlainPath is an unencrypted file. It is used as is.
type PlainPath string

func (p PlainPath) String() string { return string(p) }
func (p PlainPath) Name() string   { return filepath.Base(string(p)) }
func (p PlainPath) Ext() string    { return filepath.Ext(string(p)) }
func (p PlainPath) Dir() string    { return filepath.Dir(string(p)) }
func (p PlainPath) Cleanup() error { return nil }

func (p PlainPath) Stem() string {
	return strings.TrimSuffix(p.Name(), p.Ext())
}

func (p PlainPath) Exists() bool {
	_, err := os.Stat(string(p))
	return err == nil
}

func (p PlainPath) Stat() (os.FileInfo, error) {
	return os.Stat(string(p))
}

func (p PlainPath) ReadBytes(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(string(p))
}

func (p PlainPath) ReadText(ctx context.Context) (string, error) {
	b, err := p.ReadBytes(ctx)
	return string(b), err
}

func (p PlainPath) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.Open(string(p))
}

func (p PlainPath) Materialize(ctx context.Context) (string, error) {
	return string(p), nil
}
