package secrets_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	kerrors "github.com/PolarWolf314/casevault/internal/errors"
	"github.com/PolarWolf314/casevault/internal/secrets"
)

const testChunkSize = 64

func newTestStream(t *testing.T) *secrets.StreamCipher {
	t.Helper()

	sc, err := secrets.NewStreamCipher(newTestKey(t, 0x77), testChunkSize)
	require.NoError(t, err)
	return sc
}

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()

	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

func encryptStream(t *testing.T, sc *secrets.StreamCipher, plaintext []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, sc.EncryptStream(context.Background(), bytes.NewReader(plaintext), int64(len(plaintext)), &buf))
	return buf.Bytes()
}

func decryptStream(sc *secrets.StreamCipher, ciphertext []byte) ([]byte, error) {
	var out bytes.Buffer
	_, err := sc.DecryptStream(context.Background(), bytes.NewReader(ciphertext), &out)
	return out.Bytes(), err
}

// records splits a stream into its header and raw chunk records.
func records(t *testing.T, ciphertext []byte) (uint32, [][]byte) {
	t.Helper()

	count := binary.BigEndian.Uint32(ciphertext[:4])
	var out [][]byte
	rest := ciphertext[4:]
	for len(rest) > 0 {
		n := binary.BigEndian.Uint32(rest[:4])
		out = append(out, rest[:4+n])
		rest = rest[4+n:]
	}
	require.Len(t, out, int(count))
	return count, out
}

func assemble(count uint32, recs ...[]byte) []byte {
	var buf bytes.Buffer
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], count)
	buf.Write(header[:])
	for _, r := range recs {
		buf.Write(r)
	}
	return buf.Bytes()
}

func TestStreamRoundTrip(t *testing.T) {
	sc := newTestStream(t)

	cases := map[string]int{
		"empty":           0,
		"one byte":        1,
		"exactly a chunk": testChunkSize,
		"chunk plus one":  testChunkSize + 1,
		"many chunks":     testChunkSize*17 + 5,
	}

	for name, size := range cases {
		t.Run(name, func(t *testing.T) {
			plaintext := randomBytes(t, size)
			ciphertext := encryptStream(t, sc, plaintext)

			wantChunks := (size + testChunkSize - 1) / testChunkSize
			require.Equal(t, uint32(wantChunks), binary.BigEndian.Uint32(ciphertext[:4]))
			require.Len(t, ciphertext, 4+wantChunks*(4+secrets.ChunkOverhead)+size)

			got, err := decryptStream(sc, ciphertext)
			require.NoError(t, err)
			require.Equal(t, plaintext, append([]byte{}, got...))
		})
	}
}

func TestStreamDetectsBitFlips(t *testing.T) {
	sc := newTestStream(t)
	ciphertext := encryptStream(t, sc, randomBytes(t, testChunkSize*2+3))

	// Skip the header and each record's length prefix; those have their own tests.
	_, recs := records(t, ciphertext)
	offset := 4
	for _, rec := range recs {
		for i := 4; i < len(rec); i++ {
			tampered := append([]byte(nil), ciphertext...)
			tampered[offset+i] ^= 0x01

			_, err := decryptStream(sc, tampered)
			require.ErrorIs(t, err, kerrors.ErrDecryptFailed, "offset %d", offset+i)
		}
		offset += len(rec)
	}
}

func TestStreamDetectsStructuralTampering(t *testing.T) {
	sc := newTestStream(t)
	ciphertext := encryptStream(t, sc, randomBytes(t, testChunkSize*3))
	count, recs := records(t, ciphertext)

	cases := map[string][]byte{
		"reordered chunks":  assemble(count, recs[1], recs[0], recs[2]),
		"dropped last":      assemble(count-1, recs[0], recs[1]),
		"dropped middle":    assemble(count-1, recs[0], recs[2]),
		"truncated records": assemble(count, recs[0], recs[1]),
		"duplicated chunk":  assemble(count, recs[0], recs[0], recs[2]),
		"trailing bytes":    append(append([]byte(nil), ciphertext...), 0x00),
		"extra chunk":       assemble(count, recs[0], recs[1], recs[2], recs[2]),
		"inflated count":    assemble(count+1, recs...),
		"cut mid record":    ciphertext[:len(ciphertext)-5],
		"missing header":    ciphertext[:2],
	}

	for name, tampered := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := decryptStream(sc, tampered)
			require.ErrorIs(t, err, kerrors.ErrDecryptFailed)
		})
	}
}

func TestStreamRejectsOversizedChunkLength(t *testing.T) {
	sc := newTestStream(t)

	for _, n := range []uint32{testChunkSize + secrets.ChunkOverhead + 1, secrets.MaxChunkSize + secrets.ChunkOverhead} {
		var rec [4]byte
		binary.BigEndian.PutUint32(rec[:], n)

		_, err := decryptStream(sc, assemble(1, rec[:]))
		require.ErrorIs(t, err, kerrors.ErrDecryptFailed, "length %d", n)
	}
}

func TestStreamChunkBoundFollowsChunkSize(t *testing.T) {
	key := newTestKey(t, 0x7A)
	large, err := secrets.NewStreamCipher(key, testChunkSize*4)
	require.NoError(t, err)
	small, err := secrets.NewStreamCipher(key, testChunkSize)
	require.NoError(t, err)

	plaintext := randomBytes(t, testChunkSize*4)
	ciphertext := encryptStream(t, large, plaintext)

	got, err := decryptStream(large, ciphertext)
	require.NoError(t, err)
	require.Equal(t, plaintext, got)

	_, err = decryptStream(small, ciphertext)
	require.ErrorIs(t, err, kerrors.ErrDecryptFailed)
}

func TestStreamDestroyedKey(t *testing.T) {
	key := newTestKey(t, 0x7B)
	sc, err := secrets.NewStreamCipher(key, testChunkSize)
	require.NoError(t, err)

	key.Destroy()

	err = sc.EncryptStream(context.Background(), bytes.NewReader([]byte("x")), 1, io.Discard)
	require.ErrorIs(t, err, kerrors.ErrVaultLocked)

	_, err = secrets.NewStreamCipher(key, testChunkSize)
	require.ErrorIs(t, err, kerrors.ErrVaultLocked)
}

func TestStreamWrongKeyFails(t *testing.T) {
	sc := newTestStream(t)
	ciphertext := encryptStream(t, sc, []byte("deposition transcript"))

	other, err := secrets.NewStreamCipher(newTestKey(t, 0x78), testChunkSize)
	require.NoError(t, err)

	_, err = decryptStream(other, ciphertext)
	require.ErrorIs(t, err, kerrors.ErrDecryptFailed)
}

func TestStreamEncryptShortSource(t *testing.T) {
	sc := newTestStream(t)

	var buf bytes.Buffer
	err := sc.EncryptStream(context.Background(), bytes.NewReader([]byte("short")), 100, &buf)
	require.ErrorIs(t, err, kerrors.ErrEncryptFailed)
}

func TestStreamHonorsCancellation(t *testing.T) {
	sc := newTestStream(t)
	plaintext := randomBytes(t, testChunkSize*4)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sc.EncryptStream(ctx, bytes.NewReader(plaintext), int64(len(plaintext)), io.Discard)
	require.ErrorIs(t, err, context.Canceled)

	ciphertext := encryptStream(t, sc, plaintext)
	_, err = sc.DecryptStream(ctx, bytes.NewReader(ciphertext), io.Discard)
	require.ErrorIs(t, err, context.Canceled)
}

func TestChunkReader(t *testing.T) {
	sc := newTestStream(t)
	plaintext := randomBytes(t, testChunkSize*2+10)
	ciphertext := encryptStream(t, sc, plaintext)

	chunks, err := sc.DecryptChunks(bytes.NewReader(ciphertext))
	require.NoError(t, err)
	require.Equal(t, 3, chunks.Count())

	var got []byte
	for {
		chunk, err := chunks.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		require.LessOrEqual(t, len(chunk), testChunkSize)
		got = append(got, chunk...)
	}
	require.Equal(t, plaintext, got)

	// EOF is sticky.
	_, err = chunks.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestStreamFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "bodycam.mp4")
	enc := src + ".enc"
	out := filepath.Join(dir, "restored.mp4")

	plaintext := randomBytes(t, testChunkSize*9+1)
	require.NoError(t, os.WriteFile(src, plaintext, 0600))

	sc := newTestStream(t)

	n, err := sc.EncryptFile(context.Background(), src, enc)
	require.NoError(t, err)
	require.Equal(t, int64(len(plaintext)), n)

	format, err := secrets.DetectFormat(enc)
	require.NoError(t, err)
	require.Equal(t, secrets.FormatStream, format)

	n, err = sc.DecryptFile(context.Background(), enc, out)
	require.NoError(t, err)
	require.Equal(t, int64(len(plaintext)), n)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, plaintext, got)
}

func TestArtifactFormatMismatch(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(src, []byte("notes"), 0600))

	key := newTestKey(t, 0x79)
	tc, err := secrets.NewTokenCipher(key)
	require.NoError(t, err)
	sc, err := secrets.NewStreamCipher(key, testChunkSize)
	require.NoError(t, err)

	_, err = tc.EncryptFile(src, src+".enc")
	require.NoError(t, err)

	_, _, err = sc.OpenArtifact(src + ".enc")
	require.ErrorIs(t, err, kerrors.ErrUnknownFormat)

	require.NoError(t, os.WriteFile(src+".bad", []byte{0x09, 0x00}, 0600))
	_, err = secrets.DetectFormat(src + ".bad")
	require.ErrorIs(t, err, kerrors.ErrUnknownFormat)
}
