// Package token generates and hashes the opaque tokens used for
// sessions, password resets and MFA backup codes.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const (
	// rawTokenBytes is the entropy of a raw token before hex encoding.
	rawTokenBytes = 32

	// RawTokenLength is the length of a raw token in hex characters.
	RawTokenLength = rawTokenBytes * 2
)

// Manager produces opaque tokens from the OS entropy source and computes
// the storage-safe hash used to look them up. Raw tokens are never
// persisted or logged; stores only ever see the hash.
type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Generate returns a fresh 64-character lowercase hex token backed by
// 32 bytes from crypto/rand.
func (m *Manager) Generate() (string, error) {
	buf := make([]byte, rawTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// HashToken returns the SHA-256 hex digest of a raw token, used as the
// lookup key in every store.
func (m *Manager) HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
