// Package auth orchestrates password verification, lockout and MFA into a
// single authentication entry point.
package auth

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"auth-core/internal/events"
	"auth-core/internal/lockout"
	"auth-core/internal/mfa"
	"auth-core/internal/password"
	"auth-core/internal/sanitize"
	"auth-core/internal/util"
)

// Request carries one authentication attempt. StoredHash is supplied by
// the caller; the core does not own user records.
type Request struct {
	Identity   string
	Password   string
	StoredHash string
	MFACode    string
	IPAddress  string
}

// Result is the structured outcome of Authenticate. Expected failures
// (wrong password, lockout, missing MFA) land in Err; only store faults
// propagate as a second return value.
type Result struct {
	Success           bool
	RequiresMFA       bool
	RemainingAttempts int
	LockedUntil       *time.Time
	Err               error
}

// Manager is the authentication orchestrator. The MFA manager is an
// optional capability: a nil value means the deployment has no MFA and
// every enrollment check short-circuits to false.
type Manager struct {
	hasher    *password.Hasher
	validator *password.Validator
	lockout   *lockout.Lockout
	mfa       *mfa.Manager
	publisher events.Publisher
}

// NewManager wires the orchestrator. publisher may be events.Nop{}.
func NewManager(hasher *password.Hasher, validator *password.Validator, lo *lockout.Lockout, mfaMgr *mfa.Manager, publisher events.Publisher) *Manager {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Manager{
		hasher:    hasher,
		validator: validator,
		lockout:   lo,
		mfa:       mfaMgr,
		publisher: publisher,
	}
}

// Authenticate runs the full login sequence:
//
//  1. Lockout check. A locked account fails before the password is even
//     looked at, so the correct password cannot bypass a lockout.
//  2. Password verification; a failure records an attempt and may
//     trigger the lockout.
//  3. MFA gate, when the identity is enrolled.
//  4. On full success the failed-attempt counter is reset.
func (m *Manager) Authenticate(ctx context.Context, req Request) (*Result, error) {
	locked, until, err := m.lockout.IsLocked(ctx, req.Identity)
	if err != nil {
		return nil, fmt.Errorf("lockout check failed: %w", err)
	}
	if locked {
		return &Result{LockedUntil: until, Err: &LockedError{Until: *until}}, nil
	}

	ok, err := m.hasher.Verify(req.Password, req.StoredHash)
	if err != nil {
		// Malformed stored hash: the user sees a generic failure, the
		// fault stays visible to operators.
		util.Error("Stored credential hash unreadable", zap.Error(err))
	}
	if !ok {
		return m.failAttempt(ctx, req)
	}

	enrolled := false
	if m.mfa != nil {
		enrolled, err = m.mfa.IsEnabled(ctx, req.Identity)
		if err != nil {
			return nil, fmt.Errorf("mfa check failed: %w", err)
		}
	}
	if enrolled {
		if req.MFACode == "" {
			return &Result{RequiresMFA: true, Err: ErrMFARequired}, nil
		}
		valid, err := m.mfa.Verify(ctx, req.Identity, req.MFACode)
		if err != nil {
			return nil, fmt.Errorf("mfa verification failed: %w", err)
		}
		if !valid {
			return &Result{RequiresMFA: true, Err: ErrMFARequired}, nil
		}
	}

	if err := m.lockout.Reset(ctx, req.Identity); err != nil {
		return nil, fmt.Errorf("failed to reset attempt counter: %w", err)
	}

	m.publish(ctx, events.TypeLoginSucceeded, req)
	util.Info("Authentication succeeded",
		zap.String("identity", sanitize.SanitizeForLogging(req.Identity)),
		zap.Bool("mfa", enrolled),
	)

	return &Result{Success: true}, nil
}

func (m *Manager) failAttempt(ctx context.Context, req Request) (*Result, error) {
	count, until, err := m.lockout.RecordFailedAttempt(ctx, req.Identity)
	if err != nil {
		return nil, fmt.Errorf("failed to record attempt: %w", err)
	}

	m.publish(ctx, events.TypeLoginFailed, req)

	if until != nil {
		m.publish(ctx, events.TypeAccountLocked, req)
		return &Result{LockedUntil: until, Err: &LockedError{Until: *until}}, nil
	}

	remaining := m.lockout.Threshold() - count
	if remaining < 0 {
		remaining = 0
	}
	return &Result{RemainingAttempts: remaining, Err: ErrInvalidCredentials}, nil
}

// HashNewPassword validates a candidate password against the strength
// policy and returns its hash. A *password.PolicyError names the first
// unmet rule.
func (m *Manager) HashNewPassword(candidate string) (string, error) {
	if err := m.validator.Validate(candidate); err != nil {
		return "", err
	}
	return m.hasher.Hash(candidate)
}

// MFAEnabled reports whether the MFA capability is present at all.
func (m *Manager) MFAEnabled() bool {
	return m.mfa != nil
}

func (m *Manager) publish(ctx context.Context, eventType string, req Request) {
	event := events.Event{
		Type:      eventType,
		Identity:  req.Identity,
		IPAddress: req.IPAddress,
		At:        time.Now().UTC(),
	}
	if err := m.publisher.Publish(ctx, event); err != nil {
		util.Warn("Failed to publish security event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}
