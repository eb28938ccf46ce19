package security

import (
	"errors"
	"os"
	"strings"
)

// MinSecretLength is the shortest HMAC secret accepted.
const MinSecretLength = 32

// ErrInvalidSecret is returned when a secret is empty or shorter than MinSecretLength.
var ErrInvalidSecret = errors.New("invalid secret")

// ParseSecret returns the HMAC secret for s. s is either the secret itself or, when it names
// an existing file, a path whose trimmed contents are the secret.
func ParseSecret(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrInvalidSecret
	}
	if info, err := os.Stat(s); err == nil && !info.IsDir() {
		b, err := os.ReadFile(s)
		if err != nil {
			return nil, err
		}
		s = strings.TrimSpace(string(b))
	}
	if len(s) < MinSecretLength {
		return nil, ErrInvalidSecret
	}
	return []byte(s), nil
}
