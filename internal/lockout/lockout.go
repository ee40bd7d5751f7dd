// Package lockout tracks failed authentication attempts per identity and
// enforces temporary account lockout.
package lockout

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"auth-core/internal/store"
	"auth-core/internal/util"
)

// Lockout enforces the brute-force policy: after threshold failures an
// identity is locked until now+duration. The counter resets only through
// Reset, which callers invoke on a fully successful authentication; a
// lockout merely expiring leaves the counter in place.
type Lockout struct {
	store     store.AttemptStore
	threshold int
	duration  time.Duration

	now func() time.Time
}

// New builds a Lockout over the given attempt store.
func New(st store.AttemptStore, threshold int, duration time.Duration) *Lockout {
	if threshold <= 0 {
		threshold = 5
	}
	if duration <= 0 {
		duration = 30 * time.Minute
	}
	return &Lockout{
		store:     st,
		threshold: threshold,
		duration:  duration,
		now:       time.Now,
	}
}

// RecordFailedAttempt atomically increments the counter for identity and
// sets the lock once the count reaches the threshold. Returns the
// post-increment count and, when a lock was placed, its expiry.
func (l *Lockout) RecordFailedAttempt(ctx context.Context, identity string) (int, *time.Time, error) {
	count, err := l.store.IncrementAttempts(ctx, identity)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to record attempt: %w", err)
	}

	if count >= l.threshold {
		until := l.now().Add(l.duration)
		if err := l.store.SetLock(ctx, identity, until); err != nil {
			return count, nil, fmt.Errorf("failed to set lockout: %w", err)
		}
		util.Warn("Account locked after repeated failures",
			zap.Int("attempts", count),
			zap.Time("locked_until", until),
		)
		return count, &until, nil
	}

	return count, nil, nil
}

// IsLocked reports whether identity is currently locked and, if so, until
// when. A lock whose expiry has passed reads as unlocked; the read has no
// side effects and the counter is left untouched.
func (l *Lockout) IsLocked(ctx context.Context, identity string) (bool, *time.Time, error) {
	rec, err := l.store.GetAttempts(ctx, identity)
	if err != nil {
		return false, nil, fmt.Errorf("failed to check lockout: %w", err)
	}
	if rec.LockedUntil.IsZero() || !rec.LockedUntil.After(l.now()) {
		return false, nil, nil
	}
	until := rec.LockedUntil
	return true, &until, nil
}

// Reset zeroes the counter and clears any lock. Called only after a fully
// successful authentication.
func (l *Lockout) Reset(ctx context.Context, identity string) error {
	if err := l.store.ResetAttempts(ctx, identity); err != nil {
		return fmt.Errorf("failed to reset attempts: %w", err)
	}
	return nil
}

// FailedAttempts returns the current counter value for identity.
func (l *Lockout) FailedAttempts(ctx context.Context, identity string) (int, error) {
	rec, err := l.store.GetAttempts(ctx, identity)
	if err != nil {
		return 0, fmt.Errorf("failed to get attempts: %w", err)
	}
	return rec.Count, nil
}

// Threshold returns the configured failure threshold.
func (l *Lockout) Threshold() int {
	return l.threshold
}
