package repository

import (
	"context"
	"errors"

	"xend-auth/backend/internal/telemetry/domain"
)

// ErrRejected is returned by Save when the store refuses the record's data. Retrying the
// same record fails the same way.
var ErrRejected = errors.New("audit record rejected")

// Record is a persisted auth event.
type Record struct {
	ID string
	domain.Event
}

// Repository persists auth events.
type Repository interface {
	// Save stores r. Saving an id that already exists is a no-op so redelivered messages are harmless.
	Save(ctx context.Context, r *Record) error
	// ListByUser returns the newest events of userID first, at most limit.
	ListByUser(ctx context.Context, userID string, limit int) ([]*Record, error)
}
