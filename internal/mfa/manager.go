// Package mfa implements optional TOTP-based multi-factor authentication
// with single-use backup codes.
package mfa

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"

	"auth-core/internal/encryption"
	"auth-core/internal/store"
	"auth-core/internal/token"
	"auth-core/internal/util"
)

// BackupCodeLength is the length of one backup code.
const BackupCodeLength = 8

// backupCodeAlphabet avoids visually ambiguous characters (0/O, 1/I).
// Its size of 32 divides 256 evenly, so a modulo draw stays uniform.
const backupCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Enrollment is returned once from Enable. The secret and backup codes
// appear here in the clear for delivery to the user; only the encrypted
// secret and code hashes are persisted.
type Enrollment struct {
	Secret          string
	ProvisioningURI string
	BackupCodes     []string
}

// Manager generates TOTP enrollments and validates codes.
type Manager struct {
	tokens          *token.Manager
	store           store.MFAStore
	enc             *encryption.Manager
	issuer          string
	backupCodeCount int

	now func() time.Time
}

// NewManager builds an MFA manager. enc must be non-nil; the secret is
// never written to the store in plaintext.
func NewManager(tokens *token.Manager, st store.MFAStore, enc *encryption.Manager, issuer string, backupCodeCount int) *Manager {
	if backupCodeCount < 6 {
		backupCodeCount = 6
	}
	if issuer == "" {
		issuer = "auth-core"
	}
	return &Manager{
		tokens:          tokens,
		store:           st,
		enc:             enc,
		issuer:          issuer,
		backupCodeCount: backupCodeCount,
		now:             time.Now,
	}
}

// Enable generates a TOTP secret, a provisioning URI for authenticator
// apps and a fresh set of backup codes, then marks MFA enabled for the
// identity. Neither the secret nor any code is logged.
func (m *Manager) Enable(ctx context.Context, identity string) (*Enrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.issuer,
		AccountName: identity,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate totp secret: %w", err)
	}

	codes, err := m.GenerateBackupCodes(m.backupCodeCount)
	if err != nil {
		return nil, fmt.Errorf("failed to generate backup codes: %w", err)
	}

	hashes := make([]string, len(codes))
	for i, c := range codes {
		hashes[i] = m.tokens.HashToken(c)
	}

	encryptedSecret, err := m.enc.Encrypt(key.Secret())
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt totp secret: %w", err)
	}

	rec := store.MFARecord{
		EncryptedSecret:  encryptedSecret,
		BackupCodeHashes: hashes,
		Enabled:          true,
	}
	if err := m.store.PutEnrollment(ctx, identity, rec); err != nil {
		return nil, fmt.Errorf("failed to store enrollment: %w", err)
	}

	util.Info("MFA enabled", zap.Int("backup_codes", len(codes)))

	return &Enrollment{
		Secret:          key.Secret(),
		ProvisioningURI: key.URL(),
		BackupCodes:     codes,
	}, nil
}

// Disable clears the enrollment, including the stored secret. Returns
// false when no enrollment existed.
func (m *Manager) Disable(ctx context.Context, identity string) (bool, error) {
	deleted, err := m.store.DeleteEnrollment(ctx, identity)
	if err != nil {
		return false, fmt.Errorf("failed to delete enrollment: %w", err)
	}
	return deleted, nil
}

// IsEnabled reports whether identity has an active MFA enrollment.
func (m *Manager) IsEnabled(ctx context.Context, identity string) (bool, error) {
	rec, err := m.store.GetEnrollment(ctx, identity)
	if err != nil {
		return false, fmt.Errorf("failed to get enrollment: %w", err)
	}
	return rec != nil && rec.Enabled, nil
}

// Verify checks a live TOTP code, falling back to backup codes. Backup
// codes are consumed atomically; a consumed code never validates again.
func (m *Manager) Verify(ctx context.Context, identity, code string) (bool, error) {
	rec, err := m.store.GetEnrollment(ctx, identity)
	if err != nil {
		return false, fmt.Errorf("failed to get enrollment: %w", err)
	}
	if rec == nil || !rec.Enabled {
		return false, nil
	}

	secret, err := m.enc.Decrypt(rec.EncryptedSecret)
	if err != nil {
		return false, fmt.Errorf("failed to decrypt totp secret: %w", err)
	}

	if ValidateCode(secret, code, m.now()) {
		return true, nil
	}

	if len(code) == BackupCodeLength {
		return m.store.ConsumeBackupCode(ctx, identity, m.tokens.HashToken(code))
	}

	return false, nil
}

// ValidateCode reports whether code is a valid TOTP for secret at the
// given time. The current window and one adjacent window on each side are
// accepted to tolerate clock skew. Pure function; nothing is logged.
func ValidateCode(secret, code string, at time.Time) bool {
	ok, err := totp.ValidateCustom(code, secret, at, totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// GenerateBackupCodes returns count unique codes of BackupCodeLength
// characters, drawn from the OS entropy source.
func (m *Manager) GenerateBackupCodes(count int) ([]string, error) {
	codes := make([]string, 0, count)
	seen := make(map[string]struct{}, count)

	for len(codes) < count {
		buf := make([]byte, BackupCodeLength)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("failed to read random bytes: %w", err)
		}
		b := make([]byte, BackupCodeLength)
		for i, v := range buf {
			b[i] = backupCodeAlphabet[int(v)%len(backupCodeAlphabet)]
		}
		code := string(b)
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}

	return codes, nil
}
