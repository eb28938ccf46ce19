package repository

import (
	"context"
	"time"

	"xend-auth/backend/internal/session/domain"
)

// Rotation replaces a session's token pair. It applies only while the row still holds
// OldRefreshHash, is active and its refresh expiry is after Now.
type Rotation struct {
	SessionID        string
	OldRefreshHash   string
	AccessHash       string
	RefreshHash      string
	ExpiresAt        time.Time
	RefreshExpiresAt time.Time
	Now              time.Time
}

// Revoked identifies a session flipped to inactive by RevokeByTokenHash.
type Revoked struct {
	SessionID string `db:"id"`
	UserID    string `db:"user_id"`
}

// Repository defines persistence for sessions. Getters return (nil, nil) when no row matches.
type Repository interface {
	Create(ctx context.Context, s *domain.Session) error
	GetByAccessTokenHash(ctx context.Context, hash string) (*domain.Session, error)
	GetByRefreshTokenHash(ctx context.Context, hash string) (*domain.Session, error)
	// Rotate is a compare-and-swap on the session row. It reports false when the
	// precondition no longer holds (stale token, revoked, expired or lost race).
	Rotate(ctx context.Context, r Rotation) (bool, error)
	// RevokeByTokenHash deactivates the session whose access or refresh digest equals hash
	// and returns the sessions it flipped. Revoking an unknown or already revoked session is
	// not an error and returns none.
	RevokeByTokenHash(ctx context.Context, hash string, at time.Time) ([]Revoked, error)
}
