package store

import (
	"context"
	"sync"
	"time"

	"github.com/spaolacci/murmur3"
)

// stripeCount is the number of lock stripes in the memory backend. Writes
// for unrelated keys land on different stripes and do not contend.
const stripeCount = 64

type memoryStripe struct {
	mu          sync.Mutex
	sessions    map[string]SessionRecord
	attempts    map[string]AttemptRecord
	resets      map[string]ResetRecord
	enrollments map[string]MFARecord
	credentials map[string]string
}

// Memory is the in-process backend used in development and tests. Keys are
// sharded across mutex stripes by murmur3 hash, so per-key operations are
// atomic without a global lock.
type Memory struct {
	stripes [stripeCount]*memoryStripe
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	m := &Memory{}
	for i := range m.stripes {
		m.stripes[i] = &memoryStripe{
			sessions:    make(map[string]SessionRecord),
			attempts:    make(map[string]AttemptRecord),
			resets:      make(map[string]ResetRecord),
			enrollments: make(map[string]MFARecord),
			credentials: make(map[string]string),
		}
	}
	return m
}

func (m *Memory) stripeFor(key string) *memoryStripe {
	return m.stripes[murmur3.Sum32([]byte(key))%stripeCount]
}

// --- SessionStore ---

func (m *Memory) PutSession(_ context.Context, rec SessionRecord) error {
	s := m.stripeFor(rec.TokenHash)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[rec.TokenHash] = rec
	return nil
}

func (m *Memory) GetSession(_ context.Context, tokenHash string) (*SessionRecord, error) {
	s := m.stripeFor(tokenHash)
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[tokenHash]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *Memory) TouchSession(_ context.Context, tokenHash string, at time.Time) (bool, error) {
	s := m.stripeFor(tokenHash)
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[tokenHash]
	if !ok {
		return false, nil
	}
	// last_activity only moves forward
	if at.After(rec.LastActivity) {
		rec.LastActivity = at
		s.sessions[tokenHash] = rec
	}
	return true, nil
}

func (m *Memory) DeleteSession(_ context.Context, tokenHash string) (bool, error) {
	s := m.stripeFor(tokenHash)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[tokenHash]; !ok {
		return false, nil
	}
	delete(s.sessions, tokenHash)
	return true, nil
}

// --- AttemptStore ---

func (m *Memory) IncrementAttempts(_ context.Context, identity string) (int, error) {
	s := m.stripeFor(identity)
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.attempts[identity]
	rec.Count++
	s.attempts[identity] = rec
	return rec.Count, nil
}

func (m *Memory) SetLock(_ context.Context, identity string, until time.Time) error {
	s := m.stripeFor(identity)
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.attempts[identity]
	rec.LockedUntil = until
	s.attempts[identity] = rec
	return nil
}

func (m *Memory) GetAttempts(_ context.Context, identity string) (AttemptRecord, error) {
	s := m.stripeFor(identity)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts[identity], nil
}

func (m *Memory) ResetAttempts(_ context.Context, identity string) error {
	s := m.stripeFor(identity)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attempts, identity)
	return nil
}

// --- ResetTokenStore ---

func (m *Memory) PutResetToken(_ context.Context, rec ResetRecord) error {
	s := m.stripeFor(rec.TokenHash)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets[rec.TokenHash] = rec
	return nil
}

func (m *Memory) GetResetToken(_ context.Context, tokenHash string) (*ResetRecord, error) {
	s := m.stripeFor(tokenHash)
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.resets[tokenHash]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *Memory) MarkResetTokenUsed(_ context.Context, tokenHash string) (bool, error) {
	s := m.stripeFor(tokenHash)
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.resets[tokenHash]
	if !ok || rec.Used {
		return false, nil
	}
	rec.Used = true
	s.resets[tokenHash] = rec
	return true, nil
}

// --- MFAStore ---

func (m *Memory) PutEnrollment(_ context.Context, identity string, rec MFARecord) error {
	s := m.stripeFor(identity)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enrollments[identity] = rec
	return nil
}

func (m *Memory) GetEnrollment(_ context.Context, identity string) (*MFARecord, error) {
	s := m.stripeFor(identity)
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.enrollments[identity]
	if !ok {
		return nil, nil
	}
	out := rec
	out.BackupCodeHashes = append([]string(nil), rec.BackupCodeHashes...)
	return &out, nil
}

func (m *Memory) ConsumeBackupCode(_ context.Context, identity, codeHash string) (bool, error) {
	s := m.stripeFor(identity)
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.enrollments[identity]
	if !ok {
		return false, nil
	}
	for i, h := range rec.BackupCodeHashes {
		if h == codeHash {
			rec.BackupCodeHashes = append(rec.BackupCodeHashes[:i], rec.BackupCodeHashes[i+1:]...)
			s.enrollments[identity] = rec
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) DeleteEnrollment(_ context.Context, identity string) (bool, error) {
	s := m.stripeFor(identity)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.enrollments[identity]; !ok {
		return false, nil
	}
	delete(s.enrollments, identity)
	return true, nil
}

// --- CredentialStore ---

func (m *Memory) PutCredential(_ context.Context, identity, hash string) error {
	s := m.stripeFor(identity)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credentials[identity] = hash
	return nil
}

func (m *Memory) GetCredential(_ context.Context, identity string) (string, error) {
	s := m.stripeFor(identity)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credentials[identity], nil
}
