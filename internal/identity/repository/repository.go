package repository

import (
	"context"
	"errors"
	"time"

	"xend-auth/backend/internal/identity/domain"
)

// Unique-key violations reported by Create and UpdateProfile.
var (
	ErrEmailTaken      = errors.New("email already in use")
	ErrPhoneTaken      = errors.New("phone number already in use")
	ErrProviderIDTaken = errors.New("provider id already in use")
)

// ProfileUpdate is the merged profile written by UpdateProfile.
type ProfileUpdate struct {
	FirstName   string
	LastName    string
	PhoneNumber string
}

// Repository defines persistence for identities. Getters return (nil, nil) when no row matches.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Identity, error)
	GetByEmail(ctx context.Context, email string) (*domain.Identity, error)
	GetByPhone(ctx context.Context, phone string) (*domain.Identity, error)
	GetByProviderID(ctx context.Context, provider domain.Provider, providerID string) (*domain.Identity, error)
	Create(ctx context.Context, i *domain.Identity) error
	// UpdateProfile writes the profile fields and marks the profile complete. Returns the
	// updated identity, or nil if id does not exist.
	UpdateProfile(ctx context.Context, id string, p ProfileUpdate, at time.Time) (*domain.Identity, error)
	// SetActive sets the presence flag and last activity time. Setting the current value again is a no-op.
	SetActive(ctx context.Context, id string, active bool, at time.Time) error
}
