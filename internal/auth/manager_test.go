package auth

import (
	"context"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auth-core/internal/encryption"
	"auth-core/internal/events"
	"auth-core/internal/lockout"
	"auth-core/internal/mfa"
	"auth-core/internal/password"
	"auth-core/internal/session"
	"auth-core/internal/store"
	"auth-core/internal/token"
)

type fixture struct {
	manager  *Manager
	lockout  *lockout.Lockout
	mfa      *mfa.Manager
	store    *store.Memory
	hasher   *password.Hasher
	sessions *session.Manager
}

func newFixture(t *testing.T, withMFA bool) *fixture {
	t.Helper()

	st := store.NewMemory()
	tokens := token.NewManager()
	hasher := password.NewHasher(password.MinCost)
	validator := password.NewValidator(12)
	lo := lockout.New(st, 5, 30*time.Minute)

	var mfaMgr *mfa.Manager
	if withMFA {
		enc, err := encryption.NewManager("test-key")
		require.NoError(t, err)
		mfaMgr = mfa.NewManager(tokens, st, enc, "auth-core-test", 8)
	}

	return &fixture{
		manager:  NewManager(hasher, validator, lo, mfaMgr, events.Nop{}),
		lockout:  lo,
		mfa:      mfaMgr,
		store:    st,
		hasher:   hasher,
		sessions: session.NewManager(tokens, st, 60*time.Minute),
	}
}

func TestAuthenticateSuccess(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	hash, err := f.hasher.Hash("SecureP@ssw0rd123")
	require.NoError(t, err)

	result, err := f.manager.Authenticate(ctx, Request{
		Identity:   "alice",
		Password:   "SecureP@ssw0rd123",
		StoredHash: hash,
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.NoError(t, result.Err)
}

func TestAuthenticateWrongPassword(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	hash, err := f.hasher.Hash("SecureP@ssw0rd123")
	require.NoError(t, err)

	result, err := f.manager.Authenticate(ctx, Request{
		Identity:   "alice",
		Password:   "WrongP@ssw0rd123",
		StoredHash: hash,
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Err, ErrInvalidCredentials)
	assert.Equal(t, 4, result.RemainingAttempts)

	count, err := f.lockout.FailedAttempts(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestAuthenticateLocksAfterThreshold(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	hash, err := f.hasher.Hash("SecureP@ssw0rd123")
	require.NoError(t, err)

	var result *Result
	for i := 0; i < 5; i++ {
		result, err = f.manager.Authenticate(ctx, Request{
			Identity:   "alice",
			Password:   "WrongP@ssw0rd123",
			StoredHash: hash,
		})
		require.NoError(t, err)
	}

	var lockedErr *LockedError
	require.ErrorAs(t, result.Err, &lockedErr)
	assert.True(t, lockedErr.Until.After(time.Now()))

	// the correct password cannot bypass an active lockout
	result, err = f.manager.Authenticate(ctx, Request{
		Identity:   "alice",
		Password:   "SecureP@ssw0rd123",
		StoredHash: hash,
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	require.ErrorAs(t, result.Err, &lockedErr)
}

func TestSuccessResetsCounter(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	hash, err := f.hasher.Hash("SecureP@ssw0rd123")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = f.manager.Authenticate(ctx, Request{
			Identity:   "alice",
			Password:   "WrongP@ssw0rd123",
			StoredHash: hash,
		})
		require.NoError(t, err)
	}

	result, err := f.manager.Authenticate(ctx, Request{
		Identity:   "alice",
		Password:   "SecureP@ssw0rd123",
		StoredHash: hash,
	})
	require.NoError(t, err)
	assert.True(t, result.Success)

	count, err := f.lockout.FailedAttempts(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestAuthenticateRequiresMFA(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	hash, err := f.hasher.Hash("SecureP@ssw0rd123")
	require.NoError(t, err)

	enrollment, err := f.mfa.Enable(ctx, "alice")
	require.NoError(t, err)

	// correct password but no code: not yet authenticated
	result, err := f.manager.Authenticate(ctx, Request{
		Identity:   "alice",
		Password:   "SecureP@ssw0rd123",
		StoredHash: hash,
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.True(t, result.RequiresMFA)
	assert.ErrorIs(t, result.Err, ErrMFARequired)

	// an invalid code is still only an MFA prompt
	result, err = f.manager.Authenticate(ctx, Request{
		Identity:   "alice",
		Password:   "SecureP@ssw0rd123",
		StoredHash: hash,
		MFACode:    "000000",
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.True(t, result.RequiresMFA)

	code, err := totp.GenerateCode(enrollment.Secret, time.Now())
	require.NoError(t, err)

	result, err = f.manager.Authenticate(ctx, Request{
		Identity:   "alice",
		Password:   "SecureP@ssw0rd123",
		StoredHash: hash,
		MFACode:    code,
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestAuthenticateMalformedHash(t *testing.T) {
	f := newFixture(t, false)

	result, err := f.manager.Authenticate(context.Background(), Request{
		Identity:   "alice",
		Password:   "SecureP@ssw0rd123",
		StoredHash: "corrupted",
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Err, ErrInvalidCredentials)
}

func TestHashNewPasswordEnforcesPolicy(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.manager.HashNewPassword("weak")
	var policyErr *password.PolicyError
	assert.ErrorAs(t, err, &policyErr)

	hash, err := f.manager.HashNewPassword("SecureP@ssw0rd123")
	require.NoError(t, err)
	ok, err := f.hasher.Verify("SecureP@ssw0rd123", hash)
	require.NoError(t, err)
	assert.True(t, ok)
}

// TestLoginSessionRoundTrip covers the full flow: a failed login, a
// successful one, session issuance, validation and logout.
func TestLoginSessionRoundTrip(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	hash, err := f.hasher.Hash("IntegrationP@ss123")
	require.NoError(t, err)

	result, err := f.manager.Authenticate(ctx, Request{
		Identity:   "alice",
		Password:   "wrong-password",
		StoredHash: hash,
	})
	require.NoError(t, err)
	assert.False(t, result.Success)

	result, err = f.manager.Authenticate(ctx, Request{
		Identity:   "alice",
		Password:   "IntegrationP@ss123",
		StoredHash: hash,
	})
	require.NoError(t, err)
	require.True(t, result.Success)

	rawToken, err := f.sessions.Create(ctx, "alice", "")
	require.NoError(t, err)

	identity, err := f.sessions.Validate(ctx, rawToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", identity)

	ended, err := f.sessions.End(ctx, rawToken)
	require.NoError(t, err)
	assert.True(t, ended)

	_, err = f.sessions.Validate(ctx, rawToken)
	assert.ErrorIs(t, err, session.ErrNotFound)
}
