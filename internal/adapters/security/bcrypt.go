package security

import (
	"golang.org/x/crypto/bcrypt"
)

// BcryptHasher implements password hashing via bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a bcrypt-based hasher. Costs outside bcrypt's range fall back to the default.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash hashes password.
func (h *BcryptHasher) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Compare returns nil when password matches hash.
func (h *BcryptHasher) Compare(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
