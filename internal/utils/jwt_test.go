package utils

import (
	"errors"
	"testing"
	"time"
)

func TestAdminTokenRoundTrip(t *testing.T) {
	tok, err := NewAdminToken("secret", "admin", time.Hour)
	if err != nil {
		t.Fatalf("NewAdminToken: %v", err)
	}
	if time.Until(tok.Exp) <= 0 {
		t.Fatalf("expiry in the past: %v", tok.Exp)
	}
	claims, err := ParseAdminToken("secret", tok.Token)
	if err != nil {
		t.Fatalf("ParseAdminToken: %v", err)
	}
	if claims.Role != AdminRole || claims.Subject != "admin" {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestParseAdminTokenRejects(t *testing.T) {
	good, _ := NewAdminToken("secret", "admin", time.Hour)
	expired, _ := NewAdminToken("secret", "admin", -time.Minute)
	cases := map[string]string{
		"wrong secret": good.Token,
		"expired":      expired.Token,
		"garbage":      "not.a.token",
	}
	for name, raw := range cases {
		secret := "secret"
		if name == "wrong secret" {
			secret = "other"
		}
		if _, err := ParseAdminToken(secret, raw); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("%s: err = %v, want ErrInvalidToken", name, err)
		}
	}
}

func TestAdminCredential(t *testing.T) {
	cred, err := NewAdminCredential("hunter22", "", 4)
	if err != nil {
		t.Fatalf("NewAdminCredential: %v", err)
	}
	if !cred.Check("hunter22") {
		t.Fatal("correct password rejected")
	}
	if cred.Check("hunter23") || cred.Check("") {
		t.Fatal("wrong password accepted")
	}

	hash, _ := HashPassword("pw", 4)
	fromHash, _ := NewAdminCredential("", hash, 4)
	if !fromHash.Check("pw") {
		t.Fatal("precomputed hash not honored")
	}
	var nilCred *AdminCredential
	if nilCred.Check("pw") {
		t.Fatal("nil credential accepted a password")
	}
}
