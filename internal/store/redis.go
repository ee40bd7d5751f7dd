package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"auth-core/internal/client"
	"auth-core/internal/util"
)

const (
	sessionPrefix       = "auth_session:"
	attemptPrefix       = "auth_attempts:"
	lockPrefix          = "auth_lock:"
	resetPrefix         = "auth_reset:"
	resetUsedPrefix     = "auth_reset_used:"
	mfaPrefix           = "auth_mfa:"
	mfaBackupCodePrefix = "auth_mfa_codes:"
	credentialPrefix    = "auth_credential:"
)

// attemptRetention keeps failed-attempt counters around long enough that a
// lockout can outlive its own window without the counter silently
// vanishing underneath it. Counters reset only through ResetAttempts.
const attemptRetention = 24 * time.Hour

// Redis is the shared production backend. Per-key atomicity comes from
// Redis itself: counters use INCR in a transaction pipeline, lockout marks
// and used-token markers use SETNX, backup codes use SREM.
type Redis struct {
	client *client.RedisClient

	sessionTTL time.Duration
	resetTTL   time.Duration
}

// NewRedis builds a Redis-backed store. sessionTTL should match the
// session inactivity timeout; resetTTL the reset-token lifetime.
func NewRedis(c *client.RedisClient, sessionTTL, resetTTL time.Duration) *Redis {
	return &Redis{
		client:     c,
		sessionTTL: sessionTTL,
		resetTTL:   resetTTL,
	}
}

// --- SessionStore ---

func (r *Redis) PutSession(ctx context.Context, rec SessionRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal session record: %w", err)
	}

	key := sessionPrefix + rec.TokenHash
	if err := r.client.Set(ctx, key, string(payload), r.sessionTTL); err != nil {
		util.Error("Failed to store session", zap.Error(err))
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (r *Redis) GetSession(ctx context.Context, tokenHash string) (*SessionRecord, error) {
	raw, err := r.client.Get(ctx, sessionPrefix+tokenHash)
	if err != nil {
		if errors.Is(err, client.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var rec SessionRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session record: %w", err)
	}
	return &rec, nil
}

func (r *Redis) TouchSession(ctx context.Context, tokenHash string, at time.Time) (bool, error) {
	rec, err := r.GetSession(ctx, tokenHash)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return false, nil
	}
	if at.After(rec.LastActivity) {
		rec.LastActivity = at
		if err := r.PutSession(ctx, *rec); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (r *Redis) DeleteSession(ctx context.Context, tokenHash string) (bool, error) {
	n, err := r.client.Del(ctx, sessionPrefix+tokenHash)
	if err != nil {
		return false, fmt.Errorf("failed to delete session: %w", err)
	}
	return n > 0, nil
}

// --- AttemptStore ---

func (r *Redis) IncrementAttempts(ctx context.Context, identity string) (int, error) {
	count, err := r.client.IncrWithExpire(ctx, attemptPrefix+identity, attemptRetention)
	if err != nil {
		util.Error("Failed to increment attempt counter", zap.Error(err))
		return 0, fmt.Errorf("failed to increment attempt counter: %w", err)
	}
	return int(count), nil
}

func (r *Redis) SetLock(ctx context.Context, identity string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	key := lockPrefix + identity
	if err := r.client.Set(ctx, key, until.Format(time.RFC3339Nano), ttl); err != nil {
		return fmt.Errorf("failed to set account lock: %w", err)
	}
	return nil
}

func (r *Redis) GetAttempts(ctx context.Context, identity string) (AttemptRecord, error) {
	var rec AttemptRecord

	countStr, err := r.client.Get(ctx, attemptPrefix+identity)
	if err != nil && !errors.Is(err, client.ErrKeyNotFound) {
		return rec, fmt.Errorf("failed to get attempt counter: %w", err)
	}
	if countStr != "" {
		count, err := strconv.Atoi(countStr)
		if err != nil {
			return rec, fmt.Errorf("invalid attempt counter format: %w", err)
		}
		rec.Count = count
	}

	lockStr, err := r.client.Get(ctx, lockPrefix+identity)
	if err != nil && !errors.Is(err, client.ErrKeyNotFound) {
		return rec, fmt.Errorf("failed to get account lock: %w", err)
	}
	if lockStr != "" {
		until, err := time.Parse(time.RFC3339Nano, lockStr)
		if err != nil {
			return rec, fmt.Errorf("invalid account lock format: %w", err)
		}
		rec.LockedUntil = until
	}

	return rec, nil
}

func (r *Redis) ResetAttempts(ctx context.Context, identity string) error {
	if _, err := r.client.Del(ctx, attemptPrefix+identity, lockPrefix+identity); err != nil {
		return fmt.Errorf("failed to reset attempt counter: %w", err)
	}
	return nil
}

// --- ResetTokenStore ---

func (r *Redis) PutResetToken(ctx context.Context, rec ResetRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal reset record: %w", err)
	}

	ttl := time.Until(rec.ExpiresAt)
	if ttl <= 0 {
		ttl = r.resetTTL
	}
	if err := r.client.Set(ctx, resetPrefix+rec.TokenHash, string(payload), ttl); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}
	return nil
}

func (r *Redis) GetResetToken(ctx context.Context, tokenHash string) (*ResetRecord, error) {
	raw, err := r.client.Get(ctx, resetPrefix+tokenHash)
	if err != nil {
		if errors.Is(err, client.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get reset token: %w", err)
	}

	var rec ResetRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reset record: %w", err)
	}

	// The used flag lives in a separate SETNX marker so consumption is
	// atomic under concurrent verifications.
	used, err := r.client.Exists(ctx, resetUsedPrefix+tokenHash)
	if err != nil {
		return nil, fmt.Errorf("failed to check reset token state: %w", err)
	}
	rec.Used = rec.Used || used

	return &rec, nil
}

func (r *Redis) MarkResetTokenUsed(ctx context.Context, tokenHash string) (bool, error) {
	exists, err := r.client.Exists(ctx, resetPrefix+tokenHash)
	if err != nil {
		return false, fmt.Errorf("failed to check reset token: %w", err)
	}
	if !exists {
		return false, nil
	}

	ok, err := r.client.SetNX(ctx, resetUsedPrefix+tokenHash, "1", r.resetTTL)
	if err != nil {
		return false, fmt.Errorf("failed to mark reset token used: %w", err)
	}
	return ok, nil
}

// --- MFAStore ---

func (r *Redis) PutEnrollment(ctx context.Context, identity string, rec MFARecord) error {
	codes := rec.BackupCodeHashes
	rec.BackupCodeHashes = nil

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal mfa record: %w", err)
	}

	if err := r.client.Set(ctx, mfaPrefix+identity, string(payload), 0); err != nil {
		return fmt.Errorf("failed to store mfa enrollment: %w", err)
	}

	codesKey := mfaBackupCodePrefix + identity
	if _, err := r.client.Del(ctx, codesKey); err != nil {
		return fmt.Errorf("failed to clear backup codes: %w", err)
	}
	if len(codes) > 0 {
		members := make([]interface{}, len(codes))
		for i, c := range codes {
			members[i] = c
		}
		if err := r.client.SAdd(ctx, codesKey, members...); err != nil {
			return fmt.Errorf("failed to store backup codes: %w", err)
		}
	}
	return nil
}

func (r *Redis) GetEnrollment(ctx context.Context, identity string) (*MFARecord, error) {
	raw, err := r.client.Get(ctx, mfaPrefix+identity)
	if err != nil {
		if errors.Is(err, client.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get mfa enrollment: %w", err)
	}

	var rec MFARecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal mfa record: %w", err)
	}

	codes, err := r.client.SMembers(ctx, mfaBackupCodePrefix+identity)
	if err != nil {
		return nil, fmt.Errorf("failed to get backup codes: %w", err)
	}
	rec.BackupCodeHashes = codes

	return &rec, nil
}

func (r *Redis) ConsumeBackupCode(ctx context.Context, identity, codeHash string) (bool, error) {
	// SREM is atomic; only one concurrent caller can remove a given code
	n, err := r.client.SRem(ctx, mfaBackupCodePrefix+identity, codeHash)
	if err != nil {
		return false, fmt.Errorf("failed to consume backup code: %w", err)
	}
	return n > 0, nil
}

func (r *Redis) DeleteEnrollment(ctx context.Context, identity string) (bool, error) {
	n, err := r.client.Del(ctx, mfaPrefix+identity, mfaBackupCodePrefix+identity)
	if err != nil {
		return false, fmt.Errorf("failed to delete mfa enrollment: %w", err)
	}
	return n > 0, nil
}

// --- CredentialStore ---

func (r *Redis) PutCredential(ctx context.Context, identity, hash string) error {
	if err := r.client.Set(ctx, credentialPrefix+identity, hash, 0); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	return nil
}

func (r *Redis) GetCredential(ctx context.Context, identity string) (string, error) {
	hash, err := r.client.Get(ctx, credentialPrefix+identity)
	if err != nil {
		if errors.Is(err, client.ErrKeyNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get credential: %w", err)
	}
	return hash, nil
}
