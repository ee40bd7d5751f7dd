package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashProducesUniqueSalts(t *testing.T) {
	h := NewHasher(MinCost)

	first, err := h.Hash("CorrectHorse1!")
	require.NoError(t, err)
	second, err := h.Hash("CorrectHorse1!")
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "identical passwords must hash to different strings")

	for _, hash := range []string{first, second} {
		ok, err := h.Verify("CorrectHorse1!", hash)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestVerifyRejectsWrongPassword(t *testing.T) {
	h := NewHasher(MinCost)

	hash, err := h.Hash("CorrectHorse1!")
	require.NoError(t, err)

	ok, err := h.Verify("WrongHorse1!", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyMalformedHash(t *testing.T) {
	h := NewHasher(MinCost)

	ok, err := h.Verify("whatever", "not-a-bcrypt-hash")
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrInvalidHash)
}

func TestCostClampedToMinimum(t *testing.T) {
	h := NewHasher(4)
	assert.Equal(t, MinCost, h.Cost())
}

func TestHashRejectsOverlongPassword(t *testing.T) {
	h := NewHasher(MinCost)

	long := make([]byte, 73)
	for i := range long {
		long[i] = 'a'
	}
	_, err := h.Hash(string(long))
	assert.Error(t, err)
}
