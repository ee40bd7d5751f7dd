package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	v := NewValidator(12)

	tests := []struct {
		name     string
		password string
		wantRule string
	}{
		{"too short", "password", "min_length"},
		{"no uppercase", "securep@ssw0rd123", "uppercase"},
		{"no lowercase", "SECUREP@SSW0RD123", "lowercase"},
		{"no digit", "SecureP@ssword!!", "digit"},
		{"no special", "SecurePassw0rd123", "special"},
		{"valid", "SecureP@ssw0rd123", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.password)
			if tt.wantRule == "" {
				assert.NoError(t, err)
				return
			}

			var policyErr *PolicyError
			require.ErrorAs(t, err, &policyErr)
			assert.Equal(t, tt.wantRule, policyErr.Rule)
			assert.NotEmpty(t, policyErr.Message)
		})
	}
}

func TestValidateFirstRuleWins(t *testing.T) {
	v := NewValidator(12)

	// fails length, uppercase and digit at once; length is reported
	var policyErr *PolicyError
	err := v.Validate("short")
	require.ErrorAs(t, err, &policyErr)
	assert.Equal(t, "min_length", policyErr.Rule)
}
