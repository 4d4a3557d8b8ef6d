package utils

import (
	"errors"
	"testing"
)

func TestNormalizeUTR(t *testing.T) {
	cases := map[string]string{
		"xyz 789":         "XYZ789",
		"  abc123  ":      "ABC123",
		"ABC 123":         "ABC123",
		"a\tb\nc 1 2 3":   "ABC123",
		"":                "",
		"already0NORMAL9": "ALREADY0NORMAL9",
	}
	for in, want := range cases {
		if got := NormalizeUTR(in); got != want {
			t.Errorf("NormalizeUTR(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeUTRIdempotent(t *testing.T) {
	inputs := []string{"xyz 789", " a b c ", "Ünïcode 12", "!!@@ 55", " nbsp 1"}
	for _, in := range inputs {
		once := NormalizeUTR(in)
		if twice := NormalizeUTR(once); twice != once {
			t.Errorf("not idempotent for %q: %q -> %q", in, once, twice)
		}
	}
}

func TestParseUTR(t *testing.T) {
	ok := []string{"abc123", "XYZ 789", "123456", "A1B2C3D4E5F6G7H8I9J0A1B2C3D4E5F6G7H8I9J0A1B2C3D4E5"}
	for _, in := range ok {
		if _, err := ParseUTR(in); err != nil {
			t.Errorf("ParseUTR(%q) unexpected error %v", in, err)
		}
	}
	bad := []string{"", "abc12", "abc-123", "utr#9999", "A1B2C3D4E5F6G7H8I9J0A1B2C3D4E5F6G7H8I9J0A1B2C3D4E5X"}
	for _, in := range bad {
		if _, err := ParseUTR(in); !errors.Is(err, ErrInvalidUTR) {
			t.Errorf("ParseUTR(%q) err = %v, want ErrInvalidUTR", in, err)
		}
	}
}
