package auth

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredentials is the generic credential failure. It never
	// says which check failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrMFARequired means the password was correct but a valid MFA code
	// is still needed. Returning this as a distinct result confirms
	// password correctness to whoever holds it; the trade-off is accepted
	// so UIs can prompt for a code.
	ErrMFARequired = errors.New("multi-factor authentication required")
)

// LockedError reports an active lockout. The unlock time is disclosed to
// the user; the attempt count is not.
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked until %s", e.Until.Format(time.RFC3339))
}
