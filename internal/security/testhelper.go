package security

import "time"

// Test secrets for unit tests only. Do not use in production.
const (
	testAccessSecret  = "test-access-secret-0123456789abcdef"
	testRefreshSecret = "test-refresh-secret-0123456789abcdef"
)

// NewTestIssuer returns an Issuer with fixed test secrets, 15m access and 168h refresh TTLs.
// For unit tests only.
func NewTestIssuer() *Issuer {
	i, err := NewIssuer(
		KeyConfig{Secret: []byte(testAccessSecret), Alg: "HS256"},
		KeyConfig{Secret: []byte(testRefreshSecret), Alg: "HS256"},
		"test-issuer", 15*time.Minute, 168*time.Hour,
	)
	if err != nil {
		panic(err)
	}
	return i
}

// WithClock returns a copy of i that reads the current time from now. For tests.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	c := *i
	c.now = now
	return &c
}
