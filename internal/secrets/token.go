package secrets

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	kerrors "github.com/PolarWolf314/casevault/internal/errors"
)

const (
	tokenVersion    = 0x80
	tokenHeaderSize = 1 + 8 + aes.BlockSize
	tokenMACSize    = sha256.Size
)

var tokenEncoding = base64.URLEncoding

// TokenCipher seals whole payloads into Fernet-compatible tokens. It holds
// the whole payload in memory and is not meant for files above the
// streaming threshold.
//
// The AES block and signing key are taken from the Key when the cipher is
// built. Once the Key is destroyed, new operations fail with ErrVaultLocked
// while operations already running finish with the material they started
// with.
type TokenCipher struct {
	key     *Key
	block   cipher.Block
	signing []byte
	now     func() time.Time
}

// NewTokenCipher returns a TokenCipher using key.
// Returns ErrVaultLocked if key is nil or destroyed.
func NewTokenCipher(key *Key) (*TokenCipher, error) {
	tc := &TokenCipher{key: key, now: time.Now}

	err := key.Use(func(raw []byte) error {
		signing, encryption, err := SplitTokenKey(raw)
		if err != nil {
			return err
		}

		block, err := aes.NewCipher(encryption)
		if err != nil {
			return fmt.Errorf("%w: %w", kerrors.ErrInvalidKeyLength, err)
		}
		tc.block = block
		tc.signing = append([]byte(nil), signing...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tc, nil
}

func (tc *TokenCipher) live() error {
	if tc.key.Destroyed() {
		return fmt.Errorf("%w: key destroyed", kerrors.ErrVaultLocked)
	}
	return nil
}

// Encrypt seals plaintext and returns the encoded token.
func (tc *TokenCipher) Encrypt(plaintext []byte) ([]byte, error) {
	if err := tc.live(); err != nil {
		return nil, err
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	raw := make([]byte, tokenHeaderSize+len(padded), tokenHeaderSize+len(padded)+tokenMACSize)
	raw[0] = tokenVersion
	binary.BigEndian.PutUint64(raw[1:9], uint64(tc.now().Unix()))

	iv := raw[9:tokenHeaderSize]
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("%w: failed to generate IV: %w", kerrors.ErrEncryptFailed, err)
	}

	cipher.NewCBCEncrypter(tc.block, iv).CryptBlocks(raw[tokenHeaderSize:], padded)

	mac := hmac.New(sha256.New, tc.signing)
	mac.Write(raw)
	raw = mac.Sum(raw)

	out := make([]byte, tokenEncoding.EncodedLen(len(raw)))
	tokenEncoding.Encode(out, raw)
	return out, nil
}

// Decrypt verifies and opens an encoded token.
func (tc *TokenCipher) Decrypt(token []byte) ([]byte, error) {
	if err := tc.live(); err != nil {
		return nil, err
	}

	raw := make([]byte, tokenEncoding.DecodedLen(len(token)))
	n, err := tokenEncoding.Decode(raw, bytes.TrimSpace(token))
	if err != nil {
		return nil, fmt.Errorf("%w: token is not valid base64", kerrors.ErrDecryptFailed)
	}
	raw = raw[:n]

	if len(raw) < tokenHeaderSize+aes.BlockSize+tokenMACSize {
		return nil, fmt.Errorf("%w: token too short", kerrors.ErrDecryptFailed)
	}
	if raw[0] != tokenVersion {
		return nil, fmt.Errorf("%w: unsupported token version 0x%02x", kerrors.ErrDecryptFailed, raw[0])
	}

	body, tag := raw[:len(raw)-tokenMACSize], raw[len(raw)-tokenMACSize:]
	mac := hmac.New(sha256.New, tc.signing)
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), tag) {
		return nil, fmt.Errorf("%w: token authentication failed", kerrors.ErrDecryptFailed)
	}

	ciphertext := body[tokenHeaderSize:]
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext is not block aligned", kerrors.ErrDecryptFailed)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(tc.block, body[9:tokenHeaderSize]).CryptBlocks(plaintext, ciphertext)

	plaintext, err = pkcs7Unpad(plaintext, aes.BlockSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", kerrors.ErrDecryptFailed, err)
	}
	return plaintext, nil
}

// Timestamp returns the creation time recorded in an authenticated token.
func (tc *TokenCipher) Timestamp(token []byte) (time.Time, error) {
	if _, err := tc.Decrypt(token); err != nil {
		return time.Time{}, err
	}

	raw, err := tokenEncoding.DecodeString(string(bytes.TrimSpace(token)))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", kerrors.ErrDecryptFailed, err)
	}
	return time.Unix(int64(binary.BigEndian.Uint64(raw[1:9])), 0), nil
}

// EncryptFile seals the file at src into a token artifact at dst and returns
// the plaintext size.
func (tc *TokenCipher) EncryptFile(src, dst string) (int64, error) {
	plaintext, err := os.ReadFile(src)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", src, err)
	}

	if err := tc.WriteFile(dst, plaintext); err != nil {
		return 0, err
	}
	return int64(len(plaintext)), nil
}

// WriteFile seals plaintext into a token artifact at dst.
func (tc *TokenCipher) WriteFile(dst string, plaintext []byte) error {
	token, err := tc.Encrypt(plaintext)
	if err != nil {
		return err
	}

	err = writeArtifact(dst, FormatToken, func(w io.Writer) error {
		_, err := w.Write(token)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: %w", kerrors.ErrEncryptFailed, err)
	}
	return nil
}

// ReadFile opens the token artifact at src.
func (tc *TokenCipher) ReadFile(src string) ([]byte, error) {
	f, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer f.Close()

	return tc.DecryptArtifact(f)
}

// DecryptArtifact opens a token artifact read from r, including its tag.
func (tc *TokenCipher) DecryptArtifact(r io.Reader) ([]byte, error) {
	format, err := ReadFormat(r)
	if err != nil {
		return nil, err
	}
	if format != FormatToken {
		return nil, fmt.Errorf("%w: expected token artifact, found %s", kerrors.ErrUnknownFormat, format)
	}

	token, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", kerrors.ErrDecryptFailed, err)
	}
	return tc.Decrypt(token)
}

// DecryptFile opens the token artifact at src and writes the plaintext to dst.
func (tc *TokenCipher) DecryptFile(src, dst string) (int64, error) {
	plaintext, err := tc.ReadFile(src)
	if err != nil {
		return 0, err
	}

	if err := writePlaintext(dst, bytes.NewReader(plaintext)); err != nil {
		return 0, err
	}
	return int64(len(plaintext)), nil
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	out := make([]byte, len(b)+n)
	copy(out, b)
	for i := len(b); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

func pkcs7Unpad(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 || len(b)%blockSize != 0 {
		return nil, fmt.Errorf("invalid padded length %d", len(b))
	}

	n := int(b[len(b)-1])
	if n == 0 || n > blockSize {
		return nil, fmt.Errorf("invalid padding")
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, fmt.Errorf("invalid padding")
		}
	}
	return b[:len(b)-n], nil
}
