package token

import (
	"encoding/hex"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateFormat(t *testing.T) {
	m := NewManager()

	raw, err := m.Generate()
	require.NoError(t, err)

	assert.Len(t, raw, RawTokenLength)
	_, err = hex.DecodeString(raw)
	assert.NoError(t, err, "token must be valid lowercase hex")
	assert.Equal(t, raw, strings.ToLower(raw))
}

func TestGenerateUnpredictable(t *testing.T) {
	m := NewManager()

	const n = 32
	tokens := make([]string, n)
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		raw, err := m.Generate()
		require.NoError(t, err)
		_, dup := seen[raw]
		require.False(t, dup, "tokens must be pairwise distinct")
		seen[raw] = struct{}{}
		tokens[i] = raw
	}

	// Successive tokens interpreted as 256-bit integers must differ by an
	// astronomically large amount; a counter or weak PRNG would fail this.
	minDelta := new(big.Int).Lsh(big.NewInt(1), 200)
	for i := 1; i < n; i++ {
		prev, ok := new(big.Int).SetString(tokens[i-1], 16)
		require.True(t, ok)
		cur, ok := new(big.Int).SetString(tokens[i], 16)
		require.True(t, ok)

		delta := new(big.Int).Abs(new(big.Int).Sub(cur, prev))
		assert.True(t, delta.Cmp(minDelta) > 0,
			"successive tokens differ by less than 2^200")
	}
}

func TestHashTokenStable(t *testing.T) {
	m := NewManager()

	raw, err := m.Generate()
	require.NoError(t, err)

	first := m.HashToken(raw)
	second := m.HashToken(raw)

	assert.Equal(t, first, second)
	assert.NotEqual(t, raw, first, "hash must differ from the raw token")
	assert.Len(t, first, 64)
}
