package vault

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	kerrors "github.com/PolarWolf314/casevault/internal/errors"
	"github.com/PolarWolf314/casevault/internal/secrets"
	"github.com/PolarWolf314/casevault/internal/session"
)

// EncryptFile encrypts src into dst using the current session. An empty dst
// selects the artifact path next to src. It returns the path written.
func (m *Manager) EncryptFile(ctx context.Context, src, dst string) (string, error) {
	s, err := m.Session()
	if err != nil {
		return "", err
	}
	return m.EncryptFileWithSession(ctx, s, src, dst)
}

// EncryptFileWithSession is EncryptFile with an explicit session.
func (m *Manager) EncryptFileWithSession(ctx context.Context, s *session.Session, src, dst string) (string, error) {
	if dst == "" {
		dst = m.EncryptedPath(src)
	}

	info, err := statSource(src)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	format := m.FormatFor(info.Size())
	switch format {
	case secrets.FormatToken:
		tc, err := m.tokenCipher(s)
		if err != nil {
			return "", cryptoError(kerrors.ErrEncryptFailed, src, err)
		}
		_, err = tc.EncryptFile(src, dst)
		if err != nil {
			return "", cryptoError(kerrors.ErrEncryptFailed, src, err)
		}
	default:
		sc, err := m.streamCipher(s)
		if err != nil {
			return "", cryptoError(kerrors.ErrEncryptFailed, src, err)
		}
		_, err = sc.EncryptFile(ctx, src, dst)
		if err != nil {
			return "", cryptoError(kerrors.ErrEncryptFailed, src, err)
		}
	}

	m.log.Debugf("Encrypted %s as %s (%s)", src, dst, format)
	return dst, nil
}

// DecryptFile decrypts the artifact src into dst using the current session.
// An empty dst strips the encrypted extension. It returns the path written.
func (m *Manager) DecryptFile(ctx context.Context, src, dst string) (string, error) {
	s, err := m.Session()
	if err != nil {
		return "", err
	}
	return m.DecryptFileWithSession(ctx, s, src, dst)
}

// DecryptFileWithSession is DecryptFile with an explicit session.
func (m *Manager) DecryptFileWithSession(ctx context.Context, s *session.Session, src, dst string) (string, error) {
	if dst == "" {
		var err error
		if dst, err = m.DecryptedPath(src); err != nil {
			return "", err
		}
	}

	if _, err := statSource(src); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	format, err := secrets.DetectFormat(src)
	if err != nil {
		return "", cryptoError(kerrors.ErrDecryptFailed, src, err)
	}

	switch format {
	case secrets.FormatToken:
		tc, err := m.tokenCipher(s)
		if err != nil {
			return "", cryptoError(kerrors.ErrDecryptFailed, src, err)
		}
		if _, err := tc.DecryptFile(src, dst); err != nil {
			return "", cryptoError(kerrors.ErrDecryptFailed, src, err)
		}
	default:
		sc, err := m.streamCipher(s)
		if err != nil {
			return "", cryptoError(kerrors.ErrDecryptFailed, src, err)
		}
		if _, err := sc.DecryptFile(ctx, src, dst); err != nil {
			return "", cryptoError(kerrors.ErrDecryptFailed, src, err)
		}
	}

	m.log.Debugf("Decrypted %s to %s", src, dst)
	return dst, nil
}

// DecryptFileToMemory returns the plaintext of the artifact src.
func (m *Manager) DecryptFileToMemory(ctx context.Context, src string) ([]byte, error) {
	s, err := m.Session()
	if err != nil {
		return nil, err
	}
	return m.DecryptFileToMemoryWithSession(ctx, s, src)
}

// DecryptFileToMemoryWithSession is DecryptFileToMemory with an explicit
// session.
func (m *Manager) DecryptFileToMemoryWithSession(ctx context.Context, s *session.Session, src string) ([]byte, error) {
	r, err := m.OpenReaderWithSession(ctx, s, src)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, cryptoError(kerrors.ErrDecryptFailed, src, err)
	}
	return buf.Bytes(), nil
}

// Chunks is a forward-only sequence of plaintext chunks. Next returns io.EOF
// after the last chunk.
type Chunks interface {
	Next() ([]byte, error)
	Close() error
	Format() secrets.Format

	// Size is the total plaintext length the sequence will yield.
	Size() int64
}

type tokenChunks struct {
	data []byte
	done bool
}

func (t *tokenChunks) Next() ([]byte, error) {
	if t.done {
		return nil, io.EOF
	}
	t.done = true
	return t.data, nil
}

func (t *tokenChunks) Close() error           { return nil }
func (t *tokenChunks) Format() secrets.Format { return secrets.FormatToken }
func (t *tokenChunks) Size() int64            { return int64(len(t.data)) }

type streamChunks struct {
	*secrets.ChunkReader
	io.Closer
	size int64
}

func (s streamChunks) Format() secrets.Format { return secrets.FormatStream }
func (s streamChunks) Size() int64            { return s.size }

// OpenChunks opens the artifact src as a chunk sequence. Token artifacts
// yield a single chunk.
func (m *Manager) OpenChunks(src string) (Chunks, error) {
	s, err := m.Session()
	if err != nil {
		return nil, err
	}
	return m.OpenChunksWithSession(s, src)
}

// OpenChunksWithSession is OpenChunks with an explicit session.
func (m *Manager) OpenChunksWithSession(s *session.Session, src string) (Chunks, error) {
	info, err := statSource(src)
	if err != nil {
		return nil, err
	}

	format, err := secrets.DetectFormat(src)
	if err != nil {
		return nil, cryptoError(kerrors.ErrDecryptFailed, src, err)
	}

	if format == secrets.FormatToken {
		tc, err := m.tokenCipher(s)
		if err != nil {
			return nil, cryptoError(kerrors.ErrDecryptFailed, src, err)
		}
		data, err := tc.ReadFile(src)
		if err != nil {
			return nil, cryptoError(kerrors.ErrDecryptFailed, src, err)
		}
		return &tokenChunks{data: data}, nil
	}

	sc, err := m.streamCipher(s)
	if err != nil {
		return nil, cryptoError(kerrors.ErrDecryptFailed, src, err)
	}
	chunks, closer, err := sc.OpenArtifact(src)
	if err != nil {
		return nil, cryptoError(kerrors.ErrDecryptFailed, src, err)
	}

	size := secrets.PlaintextSize(info.Size(), chunks.Count())
	if size < 0 {
		closer.Close()
		return nil, fmt.Errorf("%w: %s is shorter than its declared %d chunks", kerrors.ErrDecryptFailed, src, chunks.Count())
	}
	return streamChunks{ChunkReader: chunks, Closer: closer, size: size}, nil
}

// chunkReader adapts Chunks to io.ReadCloser.
type chunkReader struct {
	ctx    context.Context
	chunks Chunks
	buf    []byte
	err    error
}

func (r *chunkReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		if err := r.ctx.Err(); err != nil {
			return 0, err
		}
		r.buf, r.err = r.chunks.Next()
	}

	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

func (r *chunkReader) Close() error {
	return r.chunks.Close()
}

// OpenReader returns a reader over the plaintext of the artifact src. Stream
// artifacts are decrypted incrementally.
func (m *Manager) OpenReader(ctx context.Context, src string) (io.ReadCloser, error) {
	s, err := m.Session()
	if err != nil {
		return nil, err
	}
	return m.OpenReaderWithSession(ctx, s, src)
}

// OpenReaderWithSession is OpenReader with an explicit session.
func (m *Manager) OpenReaderWithSession(ctx context.Context, s *session.Session, src string) (io.ReadCloser, error) {
	chunks, err := m.OpenChunksWithSession(s, src)
	if err != nil {
		return nil, err
	}
	return &chunkReader{ctx: ctx, chunks: chunks}, nil
}

// VerifyArtifactWithSession authenticates the artifact at path without
// writing plaintext anywhere. Token artifacts are always checked in full;
// stream artifacts only up to the first chunk unless deep is set.
func (m *Manager) VerifyArtifactWithSession(ctx context.Context, s *session.Session, path string, deep bool) (secrets.Format, error) {
	chunks, err := m.OpenChunksWithSession(s, path)
	if err != nil {
		return 0, err
	}
	defer chunks.Close()

	for {
		if err := ctx.Err(); err != nil {
			return chunks.Format(), err
		}

		_, err := chunks.Next()
		if errors.Is(err, io.EOF) {
			return chunks.Format(), nil
		}
		if err != nil {
			return chunks.Format(), cryptoError(kerrors.ErrDecryptFailed, path, err)
		}
		if !deep {
			return chunks.Format(), nil
		}
	}
}

// ReencryptFile rewrites the artifact src, sealed under from, into dst
// sealed under to. The artifact keeps its scheme.
func (m *Manager) ReencryptFile(ctx context.Context, from, to *session.Session, src, dst string) (secrets.Format, error) {
	if _, err := statSource(src); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	format, err := secrets.DetectFormat(src)
	if err != nil {
		return 0, cryptoError(kerrors.ErrDecryptFailed, src, err)
	}

	if format == secrets.FormatToken {
		oldTC, err := m.tokenCipher(from)
		if err != nil {
			return format, err
		}
		newTC, err := m.tokenCipher(to)
		if err != nil {
			return format, err
		}

		plaintext, err := oldTC.ReadFile(src)
		if err != nil {
			return format, cryptoError(kerrors.ErrDecryptFailed, src, err)
		}
		if err := newTC.WriteFile(dst, plaintext); err != nil {
			return format, cryptoError(kerrors.ErrEncryptFailed, src, err)
		}
		return format, nil
	}

	oldSC, err := m.streamCipher(from)
	if err != nil {
		return format, err
	}
	newSC, err := m.streamCipher(to)
	if err != nil {
		return format, err
	}
	if _, err := oldSC.ReencryptFile(ctx, src, dst, newSC); err != nil {
		return format, cryptoError(kerrors.ErrEncryptFailed, src, err)
	}
	return format, nil
}

// EncryptData seals data into a token using the current session.
func (m *Manager) EncryptData(data []byte) ([]byte, error) {
	s, err := m.Session()
	if err != nil {
		return nil, err
	}
	return m.EncryptDataWithSession(s, data)
}

// EncryptDataWithSession is EncryptData with an explicit session.
func (m *Manager) EncryptDataWithSession(s *session.Session, data []byte) ([]byte, error) {
	tc, err := m.tokenCipher(s)
	if err != nil {
		return nil, err
	}

	token, err := tc.Encrypt(data)
	if err != nil {
		return nil, cryptoError(kerrors.ErrEncryptFailed, "data", err)
	}
	return token, nil
}

// DecryptData opens a token produced by EncryptData.
func (m *Manager) DecryptData(token []byte) ([]byte, error) {
	s, err := m.Session()
	if err != nil {
		return nil, err
	}
	return m.DecryptDataWithSession(s, token)
}

// DecryptDataWithSession is DecryptData with an explicit session.
func (m *Manager) DecryptDataWithSession(s *session.Session, token []byte) ([]byte, error) {
	tc, err := m.tokenCipher(s)
	if err != nil {
		return nil, err
	}

	data, err := tc.Decrypt(token)
	if err != nil {
		return nil, cryptoError(kerrors.ErrDecryptFailed, "data", err)
	}
	return data, nil
}

// EncryptJSON marshals v and writes it as a token artifact at dst.
func (m *Manager) EncryptJSON(v any, dst string) error {
	s, err := m.Session()
	if err != nil {
		return err
	}
	return m.EncryptJSONWithSession(s, v, dst)
}

// EncryptJSONWithSession is EncryptJSON with an explicit session.
func (m *Manager) EncryptJSONWithSession(s *session.Session, v any, dst string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", dst, err)
	}

	tc, err := m.tokenCipher(s)
	if err != nil {
		return err
	}
	if err := tc.WriteFile(dst, data); err != nil {
		return cryptoError(kerrors.ErrEncryptFailed, dst, err)
	}
	return nil
}

// DecryptJSON decrypts the artifact src and unmarshals it into v.
func (m *Manager) DecryptJSON(ctx context.Context, src string, v any) error {
	s, err := m.Session()
	if err != nil {
		return err
	}
	return m.DecryptJSONWithSession(ctx, s, src, v)
}

// DecryptJSONWithSession is DecryptJSON with an explicit session.
func (m *Manager) DecryptJSONWithSession(ctx context.Context, s *session.Session, src string, v any) error {
	data, err := m.DecryptFileToMemoryWithSession(ctx, s, src)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", src, err)
	}
	return nil
}
