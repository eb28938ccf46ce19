package security

import (
	"errors"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// Password length policy, counted in characters. MaxPasswordBytes is the bcrypt input limit.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 24
	MaxPasswordBytes  = 72
)

var (
	// ErrPasswordTooShort is returned by Hash for passwords under MinPasswordLength characters.
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	// ErrPasswordTooLong is returned by Hash for passwords over MaxPasswordLength characters.
	ErrPasswordTooLong = errors.New("password must be at most 24 characters")
	// ErrPasswordTooManyBytes is returned by Hash for passwords over MaxPasswordBytes bytes.
	ErrPasswordTooManyBytes = errors.New("password must be at most 72 bytes")
)

// Hasher hashes and verifies passwords using bcrypt. Callers must not log or
// persist plaintext passwords.
type Hasher struct {
	Cost int
}

// NewHasher returns a Hasher with the given bcrypt cost (4–31).
func NewHasher(cost int) *Hasher {
	if cost <= 0 {
		cost = 12
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Hasher{Cost: cost}
}

// CheckPolicy reports whether password satisfies the length policy.
func CheckPolicy(password string) error {
	n := utf8.RuneCountInString(password)
	if n < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if n > MaxPasswordLength {
		return ErrPasswordTooLong
	}
	if len(password) > MaxPasswordBytes {
		return ErrPasswordTooManyBytes
	}
	return nil
}

// Hash enforces the length policy and produces a bcrypt hash suitable for storage.
func (h *Hasher) Hash(password string) (string, error) {
	if err := CheckPolicy(password); err != nil {
		return "", err
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare verifies password against the stored hash in constant time. Returns nil if they
// match; bcrypt.ErrMismatchedHashAndPassword or a parse error otherwise.
func (h *Hasher) Compare(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
