package repository

import (
	"context"
	"sync"
	"time"

	"xend-auth/backend/internal/identity/domain"
)

// MemoryRepository is an in-process Repository with the same uniqueness rules as the
// users table. Used by tests and local tooling.
type MemoryRepository struct {
	mu   sync.Mutex
	byID map[string]*domain.Identity
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[string]*domain.Identity)}
}

// Len returns the number of stored identities. For tests.
func (r *MemoryRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

func (r *MemoryRepository) find(match func(*domain.Identity) bool) *domain.Identity {
	for _, i := range r.byID {
		if match(i) {
			c := *i
			return &c
		}
	}
	return nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(func(i *domain.Identity) bool { return i.ID == id }), nil
}

func (r *MemoryRepository) GetByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if email == "" {
		return nil, nil
	}
	return r.find(func(i *domain.Identity) bool { return i.Email == email }), nil
}

func (r *MemoryRepository) GetByPhone(ctx context.Context, phone string) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if phone == "" {
		return nil, nil
	}
	return r.find(func(i *domain.Identity) bool { return i.PhoneNumber == phone }), nil
}

func (r *MemoryRepository) GetByProviderID(ctx context.Context, provider domain.Provider, providerID string) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if provider.Column() == "" {
		return nil, domain.ErrUnknownProvider
	}
	if providerID == "" {
		return nil, nil
	}
	return r.find(func(i *domain.Identity) bool { return i.ProviderID(provider) == providerID }), nil
}

func (r *MemoryRepository) conflict(id string, c *domain.Identity) error {
	for _, i := range r.byID {
		if i.ID == id {
			continue
		}
		switch {
		case c.Email != "" && i.Email == c.Email:
			return ErrEmailTaken
		case c.PhoneNumber != "" && i.PhoneNumber == c.PhoneNumber:
			return ErrPhoneTaken
		case c.AppleID != "" && i.AppleID == c.AppleID, c.GoogleID != "" && i.GoogleID == c.GoogleID:
			return ErrProviderIDTaken
		}
	}
	return nil
}

func (r *MemoryRepository) Create(ctx context.Context, i *domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.conflict(i.ID, i); err != nil {
		return err
	}
	c := *i
	r.byID[i.ID] = &c
	return nil
}

func (r *MemoryRepository) UpdateProfile(ctx context.Context, id string, p ProfileUpdate, at time.Time) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	next := *cur
	next.FirstName = p.FirstName
	next.LastName = p.LastName
	next.PhoneNumber = p.PhoneNumber
	next.IsProfileComplete = true
	next.UpdatedAt = at
	if err := r.conflict(id, &next); err != nil {
		return nil, err
	}
	r.byID[id] = &next
	out := next
	return &out, nil
}

func (r *MemoryRepository) SetActive(ctx context.Context, id string, active bool, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.byID[id]
	if !ok || cur.IsActive == active {
		return nil
	}
	next := *cur
	next.IsActive = active
	t := at
	next.LastActivity = &t
	next.UpdatedAt = at
	r.byID[id] = &next
	return nil
}
