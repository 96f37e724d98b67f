package cryptox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrCipher is returned by Decrypt for any corrupt, truncated, or
// wrong-key ciphertext. Callers must treat it as an unrecoverable
// secret-at-rest failure, not a retryable user error.
var ErrCipher = errors.New("cryptox: cannot decrypt secret")

// KeySize is the required secret key length (AES-256).
const KeySize = 32

// SecretCipher encrypts short secrets (TOTP seeds) at rest using
// AES-256-CBC with a random IV per call. The produced token is
// self-contained: hex(iv) + ":" + hex(ciphertext).
type SecretCipher struct {
	block cipher.Block
}

// NewSecretCipher builds a SecretCipher from a 32-byte key. The key is a
// deployment secret; construction fails rather than degrading when it is
// missing or the wrong size.
func NewSecretCipher(key []byte) (*SecretCipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("cryptox: secret key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptox: failed to create cipher: %w", err)
	}
	return &SecretCipher{block: block}, nil
}

// Encrypt encrypts plaintext and returns the iv:ciphertext token.
func (c *SecretCipher) Encrypt(plaintext string) (string, error) {
	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("cryptox: failed to generate iv: %w", err)
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(out, padded)

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. Any malformed token, wrong key, or tampered
// ciphertext yields ErrCipher.
func (c *SecretCipher) Decrypt(token string) (string, error) {
	ivHex, dataHex, ok := strings.Cut(token, ":")
	if !ok {
		return "", ErrCipher
	}

	iv, err := hex.DecodeString(ivHex)
	if err != nil || len(iv) != aes.BlockSize {
		return "", ErrCipher
	}
	data, err := hex.DecodeString(dataHex)
	if err != nil || len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return "", ErrCipher
	}

	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(c.block, iv).CryptBlocks(out, data)

	plain, err := pkcs7Unpad(out, aes.BlockSize)
	if err != nil {
		return "", ErrCipher
	}
	return string(plain), nil
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 || len(b)%blockSize != 0 {
		return nil, errors.New("invalid padded length")
	}
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize || n > len(b) {
		return nil, errors.New("invalid padding")
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, errors.New("invalid padding")
		}
	}
	return b[:len(b)-n], nil
}
