// Package sanitize redacts credential material from strings before they
// reach a log sink or a URL.
package sanitize

import (
	"math"
	"regexp"
	"strings"
)

// RedactionMarker replaces any value that matched a sensitive key.
const RedactionMarker = "[REDACTED]"

// credentialPattern matches key=value pairs whose key names a secret.
// The value runs until whitespace or a common delimiter so surrounding
// text (including non-sensitive keys like username=) is left intact.
var credentialPattern = regexp.MustCompile(`(?i)\b(password|token|api_key|secret)(\s*=\s*)[^\s&,;"']+`)

// suspectWords flag a value as secret-shaped regardless of entropy.
var suspectWords = []string{"secret", "token", "key", "password", "credential"}

// SanitizeForLogging replaces the value of any sensitive key=value pair
// with the redaction marker.
func SanitizeForLogging(text string) string {
	return credentialPattern.ReplaceAllString(text, "${1}${2}"+RedactionMarker)
}

// IsSafeForURL reports whether a value may be placed in a URL (query
// string, path segment) without risking credential leakage via access
// logs or referrer headers. The check is heuristic: values that name a
// secret, or that are long and high-entropy like tokens and keys, are
// rejected.
func IsSafeForURL(value string) bool {
	lower := strings.ToLower(value)
	for _, w := range suspectWords {
		if strings.Contains(lower, w) {
			return false
		}
	}

	// A 64-hex session token, a base32 TOTP secret and a random API key
	// all land well above this entropy bar; words and identifiers do not.
	if len(value) >= 32 && shannonEntropy(value) >= 3.5 {
		return false
	}

	return true
}

// shannonEntropy returns the average bits per byte of the input.
func shannonEntropy(s string) float64 {
	if len(s) == 0 {
		return 0
	}

	var freq [256]int
	for i := 0; i < len(s); i++ {
		freq[s[i]]++
	}

	entropy := 0.0
	n := float64(len(s))
	for _, count := range freq {
		if count == 0 {
			continue
		}
		p := float64(count) / n
		entropy -= p * math.Log2(p)
	}
	return entropy
}
