// Package session manages the session token lifecycle and the secure
// cookie policy.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"auth-core/internal/store"
	"auth-core/internal/token"
	"auth-core/internal/util"
)

// CookieName is the session cookie written by the delivery layer.
const CookieName = "auth_session"

var (
	// ErrNotFound means the token does not map to any session.
	ErrNotFound = errors.New("session not found")
	// ErrExpired means the session existed but idled past the timeout.
	ErrExpired = errors.New("session expired")
)

// CookieConfig describes the attributes of the session cookie. MaxAge is
// always derived from the inactivity timeout; it is not independently
// configurable, so cookie lifetime and session logic cannot drift.
type CookieConfig struct {
	Name     string
	HTTPOnly bool
	Secure   bool
	SameSite string
	Path     string
	MaxAge   int
}

// NewCookie builds an http.Cookie carrying the raw session token.
func (c CookieConfig) NewCookie(value string) *http.Cookie {
	sameSite := http.SameSiteStrictMode
	if c.SameSite == "Lax" {
		sameSite = http.SameSiteLaxMode
	}
	return &http.Cookie{
		Name:     c.Name,
		Value:    value,
		Path:     c.Path,
		MaxAge:   c.MaxAge,
		HttpOnly: c.HTTPOnly,
		Secure:   c.Secure,
		SameSite: sameSite,
	}
}

// Manager creates, validates, refreshes and terminates sessions. Expiry is
// lazy: a session past the inactivity timeout is removed the next time it
// is touched, so no background sweep is required for correctness.
type Manager struct {
	tokens      *token.Manager
	store       store.SessionStore
	idleTimeout time.Duration

	now func() time.Time
}

// NewManager builds a session manager with the given inactivity timeout.
func NewManager(tokens *token.Manager, st store.SessionStore, idleTimeout time.Duration) *Manager {
	if idleTimeout <= 0 {
		idleTimeout = 60 * time.Minute
	}
	return &Manager{
		tokens:      tokens,
		store:       st,
		idleTimeout: idleTimeout,
		now:         time.Now,
	}
}

// Create mints a fresh session for identity and returns the raw token.
// This is the only point where the raw token exists outside the caller;
// the store sees only its hash. A new login always creates a new session,
// never resurrects an old one, which also defeats session fixation.
func (m *Manager) Create(ctx context.Context, identity, ipAddress string) (string, error) {
	raw, err := m.tokens.Generate()
	if err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}

	now := m.now()
	rec := store.SessionRecord{
		TokenHash:    m.tokens.HashToken(raw),
		Identity:     identity,
		CreatedAt:    now,
		LastActivity: now,
		IPAddress:    ipAddress,
	}
	if err := m.store.PutSession(ctx, rec); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}

	util.Debug("Session created", zap.String("identity", identity))
	return raw, nil
}

// Validate resolves a raw token to its identity. Returns ErrNotFound for
// unknown tokens and ErrExpired for sessions idle past the timeout;
// expired records are deleted on the way out.
func (m *Manager) Validate(ctx context.Context, rawToken string) (string, error) {
	rec, err := m.store.GetSession(ctx, m.tokens.HashToken(rawToken))
	if err != nil {
		return "", fmt.Errorf("failed to look up session: %w", err)
	}
	if rec == nil {
		return "", ErrNotFound
	}

	if m.now().Sub(rec.LastActivity) > m.idleTimeout {
		if _, err := m.store.DeleteSession(ctx, rec.TokenHash); err != nil {
			util.Warn("Failed to remove expired session", zap.Error(err))
		}
		return "", ErrExpired
	}

	return rec.Identity, nil
}

// UpdateActivity moves last_activity to now on a still-valid session.
// Returns false when the session does not exist or has already expired.
func (m *Manager) UpdateActivity(ctx context.Context, rawToken string) (bool, error) {
	tokenHash := m.tokens.HashToken(rawToken)

	rec, err := m.store.GetSession(ctx, tokenHash)
	if err != nil {
		return false, fmt.Errorf("failed to look up session: %w", err)
	}
	if rec == nil {
		return false, nil
	}
	if m.now().Sub(rec.LastActivity) > m.idleTimeout {
		if _, err := m.store.DeleteSession(ctx, tokenHash); err != nil {
			util.Warn("Failed to remove expired session", zap.Error(err))
		}
		return false, nil
	}

	return m.store.TouchSession(ctx, tokenHash, m.now())
}

// End deletes the session. Idempotent: ending an already-ended session
// returns false without error.
func (m *Manager) End(ctx context.Context, rawToken string) (bool, error) {
	deleted, err := m.store.DeleteSession(ctx, m.tokens.HashToken(rawToken))
	if err != nil {
		return false, fmt.Errorf("failed to end session: %w", err)
	}
	return deleted, nil
}

// IdleTimeout returns the configured inactivity timeout.
func (m *Manager) IdleTimeout() time.Duration {
	return m.idleTimeout
}

// CookieConfig returns the secure cookie attributes for session delivery.
func (m *Manager) CookieConfig() CookieConfig {
	return CookieConfig{
		Name:     CookieName,
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Strict",
		Path:     "/",
		MaxAge:   int(m.idleTimeout.Seconds()),
	}
}
