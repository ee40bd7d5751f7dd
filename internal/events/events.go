// Package events publishes security events for the audit trail.
package events

import (
	"context"
	"time"
)

// Event types emitted by the authentication core.
const (
	TypeLoginSucceeded         = "login_succeeded"
	TypeLoginFailed            = "login_failed"
	TypeAccountLocked          = "account_locked"
	TypeSessionEnded           = "session_ended"
	TypeMFAEnabled             = "mfa_enabled"
	TypeMFADisabled            = "mfa_disabled"
	TypePasswordResetRequested = "password_reset_requested"
	TypePasswordResetCompleted = "password_reset_completed"
)

// Event is a single security event. It never carries raw credentials,
// tokens or MFA secrets.
type Event struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Identity  string            `json:"identity"`
	IPAddress string            `json:"ip_address,omitempty"`
	At        time.Time         `json:"at"`
	Details   map[string]string `json:"details,omitempty"`
}

// Publisher delivers security events to a sink. Publishing is best-effort
// from the caller's perspective: authentication outcomes never depend on it.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Nop discards all events; used in development and tests.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
