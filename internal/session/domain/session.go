package domain

import "time"

// Session is the durable record behind one issued token pair. Token values are held as
// SHA-256 digests. Rotation overwrites the pair on the same row.
type Session struct {
	ID               string
	UserID           string
	AccessTokenHash  string
	RefreshTokenHash string
	ExpiresAt        time.Time // access token expiry
	RefreshExpiresAt time.Time
	IsActive         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// State is the lifecycle state of a session at a point in time.
type State string

const (
	StateActive  State = "active"
	StateExpired State = "expired"
	StateRevoked State = "revoked" // terminal
)

// State returns the session state at now. A revoked session stays revoked regardless of expiry.
func (s *Session) State(now time.Time) State {
	if !s.IsActive {
		return StateRevoked
	}
	if !now.Before(s.ExpiresAt) || !now.Before(s.RefreshExpiresAt) {
		return StateExpired
	}
	return StateActive
}

// AccessValid reports whether the access token of this session may authorize a request at now.
func (s *Session) AccessValid(now time.Time) bool {
	return s.IsActive && now.Before(s.ExpiresAt)
}

// RefreshValid reports whether the refresh token of this session may be rotated at now.
// Access expiry does not matter: rotating after the access token lapsed is the normal case.
func (s *Session) RefreshValid(now time.Time) bool {
	return s.IsActive && now.Before(s.RefreshExpiresAt)
}
