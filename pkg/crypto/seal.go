package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrInvalidCiphertext is returned when sealed data cannot be opened
var ErrInvalidCiphertext = errors.New("invalid ciphertext")

// Encrypt seals plaintext with XChaCha20-Poly1305 and returns base64(nonce|ciphertext).
// The key must be exactly 32 bytes.
func Encrypt(plaintext, key string) (string, error) {
	aead, err := chacha20poly1305.NewX([]byte(key))
	if err != nil {
		return "", fmt.Errorf("failed to init cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt
func Decrypt(encoded, key string) (string, error) {
	aead, err := chacha20poly1305.NewX([]byte(key))
	if err != nil {
		return "", fmt.Errorf("failed to init cipher: %w", err)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	if len(data) < aead.NonceSize() {
		return "", ErrInvalidCiphertext
	}

	nonce, ciphertext := data[:aead.NonceSize()], data[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	return string(plaintext), nil
}

// Mask hides all but the edges of a credential for logging
func Mask(s string) string {
	if len(s) == 0 {
		return "<empty>"
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + "****" + s[len(s)-2:]
}
