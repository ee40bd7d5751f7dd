package password

import (
	"fmt"
	"unicode"
)

// PolicyError names the first password rule a candidate failed. The
// message is safe to surface directly to users.
type PolicyError struct {
	Rule    string
	Message string
}

func (e *PolicyError) Error() string {
	return e.Message
}

// Validator enforces the password strength policy. Rules run in a fixed
// order and the first violation wins, so users get one actionable message
// at a time.
type Validator struct {
	minLength int
}

func NewValidator(minLength int) *Validator {
	if minLength <= 0 {
		minLength = 12
	}
	return &Validator{minLength: minLength}
}

// Validate returns nil when the password satisfies the policy, or a
// *PolicyError describing the first unmet rule.
func (v *Validator) Validate(password string) error {
	if len([]rune(password)) < v.minLength {
		return &PolicyError{
			Rule:    "min_length",
			Message: fmt.Sprintf("password must be at least %d characters long", v.minLength),
		}
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case !unicode.IsLetter(r):
			hasSpecial = true
		}
	}

	if !hasUpper {
		return &PolicyError{Rule: "uppercase", Message: "password must contain an uppercase letter"}
	}
	if !hasLower {
		return &PolicyError{Rule: "lowercase", Message: "password must contain a lowercase letter"}
	}
	if !hasDigit {
		return &PolicyError{Rule: "digit", Message: "password must contain a digit"}
	}
	if !hasSpecial {
		return &PolicyError{Rule: "special", Message: "password must contain a special character"}
	}

	return nil
}
