package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword returns bcrypt hash using the given cost.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares bcrypt hash and plain password.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// AdminCredential holds the bcrypt hash of the shared admin password. The
// plain value is never retained after construction.
type AdminCredential struct {
	hash string
}

// NewAdminCredential prefers an existing hash and otherwise hashes plain.
func NewAdminCredential(plain, hash string, cost int) (*AdminCredential, error) {
	if hash != "" {
		return &AdminCredential{hash: hash}, nil
	}
	h, err := HashPassword(plain, cost)
	if err != nil {
		return nil, err
	}
	return &AdminCredential{hash: h}, nil
}

// Check reports whether plain matches the admin password.
func (c *AdminCredential) Check(plain string) bool {
	if c == nil || plain == "" {
		return false
	}
	return VerifyPassword(c.hash, plain)
}

