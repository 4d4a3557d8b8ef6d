package utils

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidUTR is returned when a transaction reference does not match
// [A-Z0-9]{6,50} after normalization.
var ErrInvalidUTR = errors.New("invalid UTR format")

var utrPattern = regexp.MustCompile(`^[A-Z0-9]{6,50}$`)

// NormalizeUTR trims, uppercases and removes all whitespace. It is
// idempotent: NormalizeUTR(NormalizeUTR(x)) == NormalizeUTR(x).
func NormalizeUTR(raw string) string {
	return strings.Join(strings.Fields(strings.ToUpper(raw)), "")
}

// ValidUTR reports whether an already normalized UTR is acceptable.
func ValidUTR(normalized string) bool {
	return utrPattern.MatchString(normalized)
}

// ParseUTR normalizes raw and validates the result.
func ParseUTR(raw string) (string, error) {
	n := NormalizeUTR(raw)
	if !ValidUTR(n) {
		return "", ErrInvalidUTR
	}
	return n, nil
}
