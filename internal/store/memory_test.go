package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryIncrementAttemptsConcurrent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := m.IncrementAttempts(ctx, "alice")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	rec, err := m.GetAttempts(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, workers, rec.Count, "no increment may be lost under contention")
}

func TestMemoryAttemptsIsolatedPerIdentity(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.IncrementAttempts(ctx, "alice")
	require.NoError(t, err)

	rec, err := m.GetAttempts(ctx, "bob")
	require.NoError(t, err)
	assert.Zero(t, rec.Count)
}

func TestMemorySessionLifecycle(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	now := time.Now()

	rec := SessionRecord{
		TokenHash:    "hash1",
		Identity:     "alice",
		CreatedAt:    now,
		LastActivity: now,
	}
	require.NoError(t, m.PutSession(ctx, rec))

	got, err := m.GetSession(ctx, "hash1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "alice", got.Identity)

	touched, err := m.TouchSession(ctx, "hash1", now.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, touched)

	got, err = m.GetSession(ctx, "hash1")
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Minute), got.LastActivity)

	// touch never moves last_activity backwards
	touched, err = m.TouchSession(ctx, "hash1", now.Add(-time.Hour))
	require.NoError(t, err)
	assert.True(t, touched)
	got, _ = m.GetSession(ctx, "hash1")
	assert.Equal(t, now.Add(time.Minute), got.LastActivity)

	deleted, err := m.DeleteSession(ctx, "hash1")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = m.DeleteSession(ctx, "hash1")
	require.NoError(t, err)
	assert.False(t, deleted, "second delete reports absence")

	got, err = m.GetSession(ctx, "hash1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryResetTokenUsedIsSticky(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	rec := ResetRecord{
		TokenHash: "rhash",
		Identity:  "alice",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, m.PutResetToken(ctx, rec))

	ok, err := m.MarkResetTokenUsed(ctx, "rhash")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.MarkResetTokenUsed(ctx, "rhash")
	require.NoError(t, err)
	assert.False(t, ok, "marking twice fails the second time")

	got, err := m.GetResetToken(ctx, "rhash")
	require.NoError(t, err)
	assert.True(t, got.Used)
}

func TestMemoryConsumeBackupCode(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	rec := MFARecord{
		EncryptedSecret:  "enc",
		BackupCodeHashes: []string{"h1", "h2"},
		Enabled:          true,
	}
	require.NoError(t, m.PutEnrollment(ctx, "alice", rec))

	ok, err := m.ConsumeBackupCode(ctx, "alice", "h1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.ConsumeBackupCode(ctx, "alice", "h1")
	require.NoError(t, err)
	assert.False(t, ok, "a backup code is single use")

	got, err := m.GetEnrollment(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"h2"}, got.BackupCodeHashes)
}

func TestMemoryCredentials(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	hash, err := m.GetCredential(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, hash)

	require.NoError(t, m.PutCredential(ctx, "alice", "$2a$12$abc"))

	hash, err = m.GetCredential(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "$2a$12$abc", hash)
}
