package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Identity is a user account. It may be reached by email, phone number or one
// third-party provider id per provider.
type Identity struct {
	ID                string
	Email             string
	PhoneNumber       string
	AppleID           string
	GoogleID          string
	PasswordHash      string // empty for provider-only identities
	FirstName         string
	LastName          string
	Role              Role
	IsProfileComplete bool
	IsActive          bool
	LastActivity      *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Provider is a third-party identity provider.
type Provider string

const (
	ProviderApple  Provider = "apple"
	ProviderGoogle Provider = "google"
)

// ErrUnknownProvider is returned by ParseProvider for names outside the supported set.
var ErrUnknownProvider = errors.New("unknown provider")

// ParseProvider maps a client-supplied provider name to a Provider.
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case ProviderApple, ProviderGoogle:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
}

// Column is the users column holding this provider's id.
func (p Provider) Column() string {
	switch p {
	case ProviderApple:
		return "apple_id"
	case ProviderGoogle:
		return "google_id"
	}
	return ""
}

// ProviderID returns the identity's id at provider p.
func (i *Identity) ProviderID(p Provider) string {
	switch p {
	case ProviderApple:
		return i.AppleID
	case ProviderGoogle:
		return i.GoogleID
	}
	return ""
}

// SetProviderID sets the identity's id at provider p. Unknown providers are ignored.
func (i *Identity) SetProviderID(p Provider, id string) {
	switch p {
	case ProviderApple:
		i.AppleID = id
	case ProviderGoogle:
		i.GoogleID = id
	}
}

// Validate validates the identity for persistence. Returns an error describing the first validation failure.
func (i *Identity) Validate() error {
	if i.ID == "" {
		return errors.New("id is required")
	}
	if i.Email == "" && i.PhoneNumber == "" && i.AppleID == "" && i.GoogleID == "" {
		return errors.New("at least one of email, phone number or provider id is required")
	}
	if i.Role == "" {
		i.Role = RoleUser
	}
	if i.Role != RoleUser && i.Role != RoleAdmin {
		return fmt.Errorf("invalid role %q", i.Role)
	}
	return nil
}

// NeedsName reports whether the first or last name is missing.
func (i *Identity) NeedsName() bool {
	return strings.TrimSpace(i.FirstName) == "" || strings.TrimSpace(i.LastName) == ""
}

// NeedsPhone reports whether the phone number is missing.
func (i *Identity) NeedsPhone() bool {
	return strings.TrimSpace(i.PhoneNumber) == ""
}

// PublicIdentity is the client-facing view of an Identity. It never carries the password hash.
type PublicIdentity struct {
	ID                string     `json:"id"`
	Email             string     `json:"email,omitempty"`
	PhoneNumber       string     `json:"phoneNumber,omitempty"`
	AppleID           string     `json:"appleId,omitempty"`
	GoogleID          string     `json:"googleId,omitempty"`
	FirstName         string     `json:"firstName"`
	LastName          string     `json:"lastName"`
	Role              Role       `json:"role"`
	IsProfileComplete bool       `json:"isProfileComplete"`
	IsActive          bool       `json:"isActive"`
	LastActivity      *time.Time `json:"lastActivity,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
}

// Public returns the client-facing view.
func (i *Identity) Public() PublicIdentity {
	return PublicIdentity{
		ID:                i.ID,
		Email:             i.Email,
		PhoneNumber:       i.PhoneNumber,
		AppleID:           i.AppleID,
		GoogleID:          i.GoogleID,
		FirstName:         i.FirstName,
		LastName:          i.LastName,
		Role:              i.Role,
		IsProfileComplete: i.IsProfileComplete,
		IsActive:          i.IsActive,
		LastActivity:      i.LastActivity,
		CreatedAt:         i.CreatedAt,
	}
}
