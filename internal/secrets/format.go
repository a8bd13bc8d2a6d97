package secrets

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	kerrors "github.com/PolarWolf314/casevault/internal/errors"

	"github.com/natefinch/atomic"
)

// Format identifies the scheme that produced an artifact.
type Format byte

const (
	// FormatToken marks a whole-file token artifact.
	FormatToken Format = 0x01

	// FormatStream marks a chunked AES-GCM artifact.
	FormatStream Format = 0x02
)

func (f Format) String() string {
	switch f {
	case FormatToken:
		return "token"
	case FormatStream:
		return "stream"
	default:
		return fmt.Sprintf("unknown(0x%02x)", byte(f))
	}
}

// WriteFormat writes the format tag.
func WriteFormat(w io.Writer, f Format) error {
	if _, err := w.Write([]byte{byte(f)}); err != nil {
		return fmt.Errorf("failed to write format tag: %w", err)
	}
	return nil
}

// ReadFormat reads and validates a format tag.
func ReadFormat(r io.Reader) (Format, error) {
	var tag [1]byte
	if _, err := io.ReadFull(r, tag[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, fmt.Errorf("%w: empty artifact", kerrors.ErrUnknownFormat)
		}
		return 0, fmt.Errorf("failed to read format tag: %w", err)
	}

	f := Format(tag[0])
	if f != FormatToken && f != FormatStream {
		return 0, fmt.Errorf("%w: tag 0x%02x", kerrors.ErrUnknownFormat, tag[0])
	}
	return f, nil
}

// DetectFormat returns the format tag of the artifact at path.
func DetectFormat(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	return ReadFormat(f)
}

// writeArtifact atomically replaces dst with the format tag followed by
// whatever fill writes.
func writeArtifact(dst string, format Format, fill func(w io.Writer) error) error {
	pr, pw := io.Pipe()

	done := make(chan error, 1)
	go func() {
		bw := bufio.NewWriter(pw)
		err := WriteFormat(bw, format)
		if err == nil {
			err = fill(bw)
		}
		if err == nil {
			err = bw.Flush()
		}
		pw.CloseWithError(err)
		done <- err
	}()

	writeErr := atomic.WriteFile(dst, pr)
	// Unblock the producer if the write side gave up early.
	pr.CloseWithError(writeErr)
	fillErr := <-done

	if fillErr != nil && (writeErr == nil || !errors.Is(fillErr, writeErr)) {
		return fillErr
	}
	if writeErr != nil {
		return fmt.Errorf("failed to write %s: %w", dst, writeErr)
	}
	return nil
}

// writePlaintext atomically replaces dst with the contents of r.
func writePlaintext(dst string, r io.Reader) error {
	if err := atomic.WriteFile(dst, r); err != nil {
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return nil
}
