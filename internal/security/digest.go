package security

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashToken returns a SHA-256 hash of the token string, hex-encoded.
// Sessions store and look up tokens by this digest, never by the raw value.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
