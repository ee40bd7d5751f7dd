// Package encryption protects MFA secrets at rest with AES-GCM.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

var (
	ErrMissingKey        = errors.New("encryption key not configured")
	ErrCiphertextInvalid = errors.New("ciphertext invalid or tampered")
)

// Manager encrypts and decrypts short secrets. The configured key string
// is run through SHA-256, so any non-empty key material yields a valid
// 256-bit AES key.
type Manager struct {
	aead cipher.AEAD
}

// NewManager derives an AES-256-GCM cipher from the configured key.
func NewManager(key string) (*Manager, error) {
	if key == "" {
		return nil, ErrMissingKey
	}

	derived := sha256.Sum256([]byte(key))
	block, err := aes.NewCipher(derived[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Manager{aead: aead}, nil
}

// Encrypt seals plaintext and returns hex(nonce || ciphertext). The nonce
// is fresh per call, so identical plaintexts produce distinct outputs.
func (m *Manager) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, m.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := m.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Tampered or truncated input yields
// ErrCiphertextInvalid.
func (m *Manager) Decrypt(ciphertextHex string) (string, error) {
	data, err := hex.DecodeString(ciphertextHex)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCiphertextInvalid, err)
	}

	nonceSize := m.aead.NonceSize()
	if len(data) < nonceSize {
		return "", ErrCiphertextInvalid
	}

	nonce, sealed := data[:nonceSize], data[nonceSize:]
	plaintext, err := m.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrCiphertextInvalid
	}
	return string(plaintext), nil
}
