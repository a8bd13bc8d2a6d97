package secrets

import (
	"bufio"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	kerrors "github.com/PolarWolf314/casevault/internal/errors"
)

const (
	// DefaultChunkSize is the plaintext size of one streaming chunk.
	DefaultChunkSize = 64 * 1024

	// MaxChunkSize bounds the configurable chunk size.
	MaxChunkSize = 16 * 1024 * 1024

	nonceSize = 12
	tagSize   = 16

	// ChunkOverhead is the per-chunk size added by sealing.
	ChunkOverhead = nonceSize + tagSize
)

// StreamCipher encrypts large payloads chunk by chunk with AES-256-GCM.
// Memory use is bounded by the chunk size regardless of payload size.
//
// Like TokenCipher it builds its AEAD from the Key up front, and refuses new
// operations once the Key is destroyed.
type StreamCipher struct {
	key       *Key
	gcm       cipher.AEAD
	chunkSize int
}

// NewStreamCipher returns a StreamCipher using key. Decryption rejects
// chunks larger than chunkSize plus ChunkOverhead.
// Returns ErrVaultLocked if key is nil or destroyed.
func NewStreamCipher(key *Key, chunkSize int) (*StreamCipher, error) {
	if chunkSize <= 0 || chunkSize > MaxChunkSize {
		return nil, fmt.Errorf("chunk size must be between 1 and %d, got %d", MaxChunkSize, chunkSize)
	}

	sc := &StreamCipher{key: key, chunkSize: chunkSize}
	err := key.Use(func(raw []byte) error {
		if len(raw) != KeySize {
			return fmt.Errorf("%w: stream cipher needs a %d-byte key", kerrors.ErrInvalidKeyLength, KeySize)
		}

		block, err := aes.NewCipher(raw)
		if err != nil {
			return fmt.Errorf("%w: %w", kerrors.ErrInvalidKeyLength, err)
		}
		sc.gcm, err = cipher.NewGCM(block)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sc, nil
}

func (sc *StreamCipher) aead() (cipher.AEAD, error) {
	if sc.key.Destroyed() {
		return nil, fmt.Errorf("%w: key destroyed", kerrors.ErrVaultLocked)
	}
	return sc.gcm, nil
}

func chunkAAD(count, index uint32) []byte {
	var aad [8]byte
	binary.BigEndian.PutUint32(aad[0:4], count)
	binary.BigEndian.PutUint32(aad[4:8], index)
	return aad[:]
}

// EncryptStream reads exactly size bytes from r and writes the chunked
// ciphertext to w. It does not write a format tag.
func (sc *StreamCipher) EncryptStream(ctx context.Context, r io.Reader, size int64, w io.Writer) error {
	if size < 0 {
		return fmt.Errorf("%w: negative size %d", kerrors.ErrEncryptFailed, size)
	}

	count64 := (size + int64(sc.chunkSize) - 1) / int64(sc.chunkSize)
	if count64 > math.MaxUint32 {
		return fmt.Errorf("%w: payload needs %d chunks", kerrors.ErrEncryptFailed, count64)
	}
	count := uint32(count64)

	gcm, err := sc.aead()
	if err != nil {
		return fmt.Errorf("%w: %w", kerrors.ErrEncryptFailed, err)
	}

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], count)
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("%w: %w", kerrors.ErrEncryptFailed, err)
	}

	plain := make([]byte, sc.chunkSize)
	record := make([]byte, 4+nonceSize, 4+nonceSize+sc.chunkSize+tagSize)
	remaining := size

	for i := uint32(0); i < count; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		n := int64(sc.chunkSize)
		if remaining < n {
			n = remaining
		}
		if _, err := io.ReadFull(r, plain[:n]); err != nil {
			return fmt.Errorf("%w: source shorter than %d bytes: %w", kerrors.ErrEncryptFailed, size, err)
		}
		remaining -= n

		nonce := record[4 : 4+nonceSize]
		if _, err := rand.Read(nonce); err != nil {
			return fmt.Errorf("%w: failed to generate nonce: %w", kerrors.ErrEncryptFailed, err)
		}

		sealed := gcm.Seal(record[:4+nonceSize], nonce, plain[:n], chunkAAD(count, i))
		binary.BigEndian.PutUint32(sealed[0:4], uint32(len(sealed)-4))

		if _, err := w.Write(sealed); err != nil {
			return fmt.Errorf("%w: %w", kerrors.ErrEncryptFailed, err)
		}
	}

	zero(plain)
	return nil
}

// DecryptStream reads a chunked ciphertext from r and writes the plaintext
// to w, returning the number of plaintext bytes written.
func (sc *StreamCipher) DecryptStream(ctx context.Context, r io.Reader, w io.Writer) (int64, error) {
	chunks, err := sc.DecryptChunks(r)
	if err != nil {
		return 0, err
	}

	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		chunk, err := chunks.Next()
		if errors.Is(err, io.EOF) {
			return written, nil
		}
		if err != nil {
			return written, err
		}

		n, err := w.Write(chunk)
		written += int64(n)
		if err != nil {
			return written, fmt.Errorf("%w: %w", kerrors.ErrDecryptFailed, err)
		}
	}
}

// DecryptChunks reads the stream header from r and returns a reader over the
// plaintext chunks.
func (sc *StreamCipher) DecryptChunks(r io.Reader) (*ChunkReader, error) {
	gcm, err := sc.aead()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", kerrors.ErrDecryptFailed, err)
	}

	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("%w: invalid stream header", kerrors.ErrDecryptFailed)
	}

	return &ChunkReader{
		r:        r,
		gcm:      gcm,
		count:    binary.BigEndian.Uint32(header[:]),
		maxChunk: uint32(sc.chunkSize + ChunkOverhead),
	}, nil
}

// ChunkReader yields the plaintext chunks of a stream in order. The slice
// returned by Next is reused by the following call.
type ChunkReader struct {
	r        io.Reader
	gcm      cipher.AEAD
	count    uint32
	index    uint32
	maxChunk uint32
	buf      []byte
	plain    []byte
	err      error
}

// Count returns the number of chunks declared by the stream header.
func (cr *ChunkReader) Count() int {
	return int(cr.count)
}

// Next returns the next plaintext chunk, or io.EOF once every declared chunk
// has been read. Any authentication, truncation or trailing-data failure is
// returned as ErrDecryptFailed and is sticky.
func (cr *ChunkReader) Next() ([]byte, error) {
	if cr.err != nil {
		return nil, cr.err
	}

	if cr.index == cr.count {
		cr.err = cr.checkTrailing()
		return nil, cr.err
	}

	var lenBuf [4]byte
	if _, err := io.ReadFull(cr.r, lenBuf[:]); err != nil {
		return nil, cr.fail("unexpected end of stream at chunk %d of %d", cr.index, cr.count)
	}

	n := binary.BigEndian.Uint32(lenBuf[:])
	if n < ChunkOverhead || n > cr.maxChunk {
		return nil, cr.fail("chunk %d has invalid length %d", cr.index, n)
	}

	if cap(cr.buf) < int(n) {
		cr.buf = make([]byte, n)
	}
	record := cr.buf[:n]
	if _, err := io.ReadFull(cr.r, record); err != nil {
		return nil, cr.fail("unexpected end of stream in chunk %d of %d", cr.index, cr.count)
	}

	plain, err := cr.gcm.Open(cr.plain[:0], record[:nonceSize], record[nonceSize:], chunkAAD(cr.count, cr.index))
	if err != nil {
		return nil, cr.fail("chunk %d failed authentication", cr.index)
	}
	cr.plain = plain
	cr.index++

	return plain, nil
}

func (cr *ChunkReader) checkTrailing() error {
	var one [1]byte
	n, err := cr.r.Read(one[:])
	for n == 0 && err == nil {
		n, err = cr.r.Read(one[:])
	}
	if n > 0 {
		return fmt.Errorf("%w: trailing data after %d chunks", kerrors.ErrDecryptFailed, cr.count)
	}
	if errors.Is(err, io.EOF) {
		return io.EOF
	}
	return fmt.Errorf("%w: %w", kerrors.ErrDecryptFailed, err)
}

func (cr *ChunkReader) fail(format string, args ...any) error {
	cr.err = fmt.Errorf("%w: "+format, append([]any{kerrors.ErrDecryptFailed}, args...)...)
	return cr.err
}

// EncryptFile encrypts the file at src into a stream artifact at dst and
// returns the plaintext size.
func (sc *StreamCipher) EncryptFile(ctx context.Context, src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat %s: %w", src, err)
	}

	err = writeArtifact(dst, FormatStream, func(w io.Writer) error {
		return sc.EncryptStream(ctx, bufio.NewReader(in), info.Size(), w)
	})
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// PlaintextSize returns the plaintext length of a stream artifact of
// artifactSize bytes holding count chunks. A negative result means the
// artifact is shorter than its header claims.
func PlaintextSize(artifactSize int64, count int) int64 {
	return artifactSize - 1 - 4 - int64(count)*(4+ChunkOverhead)
}

// OpenArtifact opens a stream artifact, consuming its tag, and returns a
// ChunkReader over it together with the file to close.
func (sc *StreamCipher) OpenArtifact(path string) (*ChunkReader, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	br := bufio.NewReader(f)
	format, err := ReadFormat(br)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	if format != FormatStream {
		f.Close()
		return nil, nil, fmt.Errorf("%w: expected stream artifact, found %s", kerrors.ErrUnknownFormat, format)
	}

	chunks, err := sc.DecryptChunks(br)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return chunks, f, nil
}

// DecryptFile decrypts the stream artifact at src into dst and returns the
// plaintext size.
func (sc *StreamCipher) DecryptFile(ctx context.Context, src, dst string) (int64, error) {
	chunks, closer, err := sc.OpenArtifact(src)
	if err != nil {
		return 0, err
	}
	defer closer.Close()

	pr, pw := io.Pipe()
	done := make(chan error, 1)
	var written int64

	go func() {
		bw := bufio.NewWriter(pw)
		var err error
		for err == nil {
			if err = ctx.Err(); err != nil {
				break
			}
			var chunk []byte
			chunk, err = chunks.Next()
			if err != nil {
				break
			}
			var n int
			n, err = bw.Write(chunk)
			written += int64(n)
		}
		if errors.Is(err, io.EOF) {
			err = bw.Flush()
		}
		pw.CloseWithError(err)
		done <- err
	}()

	writeErr := writePlaintext(dst, pr)
	pr.CloseWithError(writeErr)
	readErr := <-done

	if readErr != nil {
		return 0, readErr
	}
	if writeErr != nil {
		return 0, writeErr
	}
	return written, nil
}

// ReencryptFile decrypts the stream artifact at src under sc and writes it
// to dst as a stream artifact under to. Plaintext only passes through
// chunk-sized buffers.
func (sc *StreamCipher) ReencryptFile(ctx context.Context, src, dst string, to *StreamCipher) (int64, error) {
	info, err := os.Stat(src)
	if err != nil {
		return 0, fmt.Errorf("failed to stat %s: %w", src, err)
	}

	chunks, closer, err := sc.OpenArtifact(src)
	if err != nil {
		return 0, err
	}
	defer closer.Close()

	size := PlaintextSize(info.Size(), chunks.Count())
	if size < 0 {
		return 0, fmt.Errorf("%w: %s is shorter than its declared %d chunks", kerrors.ErrDecryptFailed, src, chunks.Count())
	}

	pr, pw := io.Pipe()
	go func() {
		var err error
		for err == nil {
			var chunk []byte
			if chunk, err = chunks.Next(); err == nil {
				_, err = pw.Write(chunk)
			}
		}
		if errors.Is(err, io.EOF) {
			err = nil
		}
		pw.CloseWithError(err)
	}()
	defer pr.Close()

	err = writeArtifact(dst, FormatStream, func(w io.Writer) error {
		return to.EncryptStream(ctx, pr, size, w)
	})
	if err != nil {
		return 0, err
	}
	return size, nil
}
