// Package credential owns the password hash format and the acceptance
// policy. It holds no state beyond the hash contract.
package credential

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hasher hashes and verifies passwords with bcrypt. Each call salts
// independently, so hashing the same password twice never produces the
// same output.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher at bcrypt's default cost.
func NewHasher() *Hasher {
	return &Hasher{cost: bcrypt.DefaultCost}
}

// Hash derives a salted adaptive hash of password.
func (h *Hasher) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether password matches hash. bcrypt's comparison is
// constant-time with respect to the candidate password.
func (h *Hasher) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
