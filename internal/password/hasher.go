// Package password covers credential hashing and strength policy.
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidHash is returned when a stored hash cannot be parsed. Callers
// treat it as a verification failure toward the user; operators see the
// wrapped error in logs.
var ErrInvalidHash = errors.New("invalid password hash format")

// MinCost is the lowest acceptable bcrypt work factor.
const MinCost = 12

// Hasher salts and hashes passwords with bcrypt. Every call to Hash draws
// a fresh random salt, so two hashes of the same password never collide.
type Hasher struct {
	cost int
}

// NewHasher builds a Hasher with the given bcrypt cost, clamped to MinCost.
func NewHasher(cost int) *Hasher {
	if cost < MinCost {
		cost = MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Hasher{cost: cost}
}

// Hash returns the bcrypt hash of password. The encoded string carries
// algorithm, cost and salt, so nothing else needs to be stored.
func (h *Hasher) Hash(password string) (string, error) {
	// bcrypt ignores input beyond 72 bytes; reject instead of truncating
	if len(password) > 72 {
		return "", fmt.Errorf("password exceeds 72 bytes")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether password matches the stored hash. The comparison
// is bcrypt's own constant-time check. A malformed hash yields
// (false, ErrInvalidHash) rather than a panic or a bare mismatch, so the
// caller's UI path sees a clean failure while the fault stays visible to
// operators.
func (h *Hasher) Verify(password, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
}

// Cost returns the configured work factor.
func (h *Hasher) Cost() int {
	return h.cost
}
