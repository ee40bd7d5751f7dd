// Package store defines the storage contracts of the authentication core
// and provides in-memory and Redis-backed implementations. Services
// receive a store through their constructor; there are no package-level
// singletons.
package store

import (
	"context"
	"time"
)

// SessionRecord is a live authenticated session, keyed by the hash of its
// raw token. The raw token itself is never stored.
type SessionRecord struct {
	TokenHash    string            `json:"token_hash"`
	Identity     string            `json:"identity"`
	CreatedAt    time.Time         `json:"created_at"`
	LastActivity time.Time         `json:"last_activity"`
	IPAddress    string            `json:"ip_address,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// AttemptRecord is the brute-force counter state for one identity.
// A zero LockedUntil means no lockout has been set.
type AttemptRecord struct {
	Count       int       `json:"count"`
	LockedUntil time.Time `json:"locked_until,omitzero"`
}

// ResetRecord is a single-use password-reset token, keyed by token hash.
type ResetRecord struct {
	TokenHash string    `json:"token_hash"`
	Identity  string    `json:"identity"`
	ExpiresAt time.Time `json:"expires_at"`
	Used      bool      `json:"used"`
}

// MFARecord is the TOTP enrollment for one identity. The shared secret is
// encrypted at rest and backup codes are stored only as hashes.
type MFARecord struct {
	EncryptedSecret  string   `json:"encrypted_secret"`
	BackupCodeHashes []string `json:"backup_code_hashes"`
	Enabled          bool     `json:"enabled"`
}

// SessionStore persists session records. Implementations must serialize
// writes per token hash; reads may proceed concurrently.
type SessionStore interface {
	PutSession(ctx context.Context, rec SessionRecord) error
	// GetSession returns (nil, nil) when no record exists.
	GetSession(ctx context.Context, tokenHash string) (*SessionRecord, error)
	// TouchSession sets last_activity; returns false if the record is gone.
	TouchSession(ctx context.Context, tokenHash string, at time.Time) (bool, error)
	// DeleteSession removes the record; returns false if it was absent.
	DeleteSession(ctx context.Context, tokenHash string) (bool, error)
}

// AttemptStore persists failed-attempt counters. IncrementAttempts must be
// atomic per identity: two concurrent failures yield exactly count+2.
type AttemptStore interface {
	IncrementAttempts(ctx context.Context, identity string) (int, error)
	SetLock(ctx context.Context, identity string, until time.Time) error
	// GetAttempts returns a zero-valued record when nothing is stored.
	GetAttempts(ctx context.Context, identity string) (AttemptRecord, error)
	ResetAttempts(ctx context.Context, identity string) error
}

// ResetTokenStore persists password-reset tokens.
type ResetTokenStore interface {
	PutResetToken(ctx context.Context, rec ResetRecord) error
	// GetResetToken returns (nil, nil) when no record exists.
	GetResetToken(ctx context.Context, tokenHash string) (*ResetRecord, error)
	// MarkResetTokenUsed is sticky and idempotent; returns false if the
	// token was already used or does not exist.
	MarkResetTokenUsed(ctx context.Context, tokenHash string) (bool, error)
}

// MFAStore persists TOTP enrollments.
type MFAStore interface {
	PutEnrollment(ctx context.Context, identity string, rec MFARecord) error
	// GetEnrollment returns (nil, nil) when the identity has no enrollment.
	GetEnrollment(ctx context.Context, identity string) (*MFARecord, error)
	// ConsumeBackupCode atomically removes one backup code hash; returns
	// false if the hash was not present.
	ConsumeBackupCode(ctx context.Context, identity, codeHash string) (bool, error)
	DeleteEnrollment(ctx context.Context, identity string) (bool, error)
}

// CredentialStore persists password hashes per identity. The core never
// reads a plaintext password back; only the encoded hash is stored.
type CredentialStore interface {
	PutCredential(ctx context.Context, identity, hash string) error
	// GetCredential returns ("", nil) when the identity is unknown.
	GetCredential(ctx context.Context, identity string) (string, error)
}

// Store bundles every storage contract so the factory can hand services a
// single backend.
type Store interface {
	SessionStore
	AttemptStore
	ResetTokenStore
	MFAStore
	CredentialStore
}
