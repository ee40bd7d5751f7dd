// Package reset issues and consumes single-use password-reset tokens.
package reset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auth-core/internal/store"
	"auth-core/internal/token"
)

// ErrInvalidToken covers unknown, expired and already-used tokens alike;
// callers get no hint which case applied.
var ErrInvalidToken = errors.New("invalid or expired reset token")

// Manager issues reset tokens with a short fixed lifetime. Tokens are
// stored by hash and become permanently invalid once consumed.
type Manager struct {
	tokens *token.Manager
	store  store.ResetTokenStore
	ttl    time.Duration

	now func() time.Time
}

// NewManager builds a reset manager with the given token lifetime.
func NewManager(tokens *token.Manager, st store.ResetTokenStore, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Manager{
		tokens: tokens,
		store:  st,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Generate issues a fresh reset token for identity and returns the raw
// value for out-of-band delivery. Only the hash is stored.
func (m *Manager) Generate(ctx context.Context, identity string) (string, error) {
	raw, err := m.tokens.Generate()
	if err != nil {
		return "", fmt.Errorf("failed to generate reset token: %w", err)
	}

	rec := store.ResetRecord{
		TokenHash: m.tokens.HashToken(raw),
		Identity:  identity,
		ExpiresAt: m.now().Add(m.ttl),
	}
	if err := m.store.PutResetToken(ctx, rec); err != nil {
		return "", fmt.Errorf("failed to store reset token: %w", err)
	}

	return raw, nil
}

// Verify returns the identity a valid token belongs to. The check is
// read-only so a reset form can re-verify before submission; the token
// stays usable until Invalidate is called.
func (m *Manager) Verify(ctx context.Context, rawToken string) (string, error) {
	rec, err := m.store.GetResetToken(ctx, m.tokens.HashToken(rawToken))
	if err != nil {
		return "", fmt.Errorf("failed to look up reset token: %w", err)
	}
	if rec == nil || rec.Used || !rec.ExpiresAt.After(m.now()) {
		return "", ErrInvalidToken
	}
	return rec.Identity, nil
}

// Invalidate marks the token used. The flag is sticky: every later Verify
// for the same token fails. Invalidating an unknown or already-used token
// is a no-op.
func (m *Manager) Invalidate(ctx context.Context, rawToken string) error {
	if _, err := m.store.MarkResetTokenUsed(ctx, m.tokens.HashToken(rawToken)); err != nil {
		return fmt.Errorf("failed to invalidate reset token: %w", err)
	}
	return nil
}
