package mfa

import (
	"context"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auth-core/internal/encryption"
	"auth-core/internal/store"
	"auth-core/internal/token"
)

func newTestManager(t *testing.T) (*Manager, *store.Memory) {
	t.Helper()
	enc, err := encryption.NewManager("test-encryption-key")
	require.NoError(t, err)
	st := store.NewMemory()
	return NewManager(token.NewManager(), st, enc, "auth-core-test", 8), st
}

func TestEnable(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()

	enrollment, err := m.Enable(ctx, "alice")
	require.NoError(t, err)

	assert.NotEmpty(t, enrollment.Secret)
	assert.Contains(t, enrollment.ProvisioningURI, "otpauth://totp/")
	assert.Contains(t, enrollment.ProvisioningURI, "alice")

	require.GreaterOrEqual(t, len(enrollment.BackupCodes), 6)
	seen := make(map[string]struct{})
	for _, code := range enrollment.BackupCodes {
		assert.Len(t, code, BackupCodeLength)
		_, dup := seen[code]
		assert.False(t, dup, "backup codes must be unique")
		seen[code] = struct{}{}
	}

	enabled, err := m.IsEnabled(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, enabled)

	// the store never sees the plaintext secret
	rec, err := st.GetEnrollment(ctx, "alice")
	require.NoError(t, err)
	assert.NotEqual(t, enrollment.Secret, rec.EncryptedSecret)
	for _, code := range enrollment.BackupCodes {
		assert.NotContains(t, rec.BackupCodeHashes, code)
	}
}

func TestIsEnabledDefaultsFalse(t *testing.T) {
	m, _ := newTestManager(t)

	enabled, err := m.IsEnabled(context.Background(), "nobody")
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestVerifyTOTPCode(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	enrollment, err := m.Enable(ctx, "alice")
	require.NoError(t, err)

	code, err := totp.GenerateCode(enrollment.Secret, time.Now())
	require.NoError(t, err)

	valid, err := m.Verify(ctx, "alice", code)
	require.NoError(t, err)
	assert.True(t, valid)

	valid, err = m.Verify(ctx, "alice", "000000")
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestValidateCodeToleratesSkew(t *testing.T) {
	m, _ := newTestManager(t)

	enrollment, err := m.Enable(context.Background(), "alice")
	require.NoError(t, err)

	now := time.Now()
	code, err := totp.GenerateCode(enrollment.Secret, now)
	require.NoError(t, err)

	assert.True(t, ValidateCode(enrollment.Secret, code, now))
	assert.True(t, ValidateCode(enrollment.Secret, code, now.Add(25*time.Second)),
		"adjacent window must be accepted")
	assert.False(t, ValidateCode(enrollment.Secret, code, now.Add(5*time.Minute)),
		"a stale code must be rejected")
}

func TestBackupCodeSingleUse(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	enrollment, err := m.Enable(ctx, "alice")
	require.NoError(t, err)

	code := enrollment.BackupCodes[0]

	valid, err := m.Verify(ctx, "alice", code)
	require.NoError(t, err)
	assert.True(t, valid)

	valid, err = m.Verify(ctx, "alice", code)
	require.NoError(t, err)
	assert.False(t, valid, "a consumed backup code never validates again")
}

func TestDisable(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Enable(ctx, "alice")
	require.NoError(t, err)

	deleted, err := m.Disable(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, deleted)

	enabled, err := m.IsEnabled(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, enabled)

	deleted, err = m.Disable(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestGenerateBackupCodes(t *testing.T) {
	m, _ := newTestManager(t)

	codes, err := m.GenerateBackupCodes(10)
	require.NoError(t, err)
	require.Len(t, codes, 10)

	seen := make(map[string]struct{})
	for _, code := range codes {
		assert.Len(t, code, BackupCodeLength)
		for _, r := range code {
			assert.Contains(t, backupCodeAlphabet, string(r))
		}
		_, dup := seen[code]
		assert.False(t, dup)
		seen[code] = struct{}{}
	}
}
