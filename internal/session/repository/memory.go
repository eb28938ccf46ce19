package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"xend-auth/backend/internal/session/domain"
)

// MemoryRepository is an in-process Repository. Rotate and RevokeByTokenHash run under one
// mutex so they have the same compare-and-swap semantics as the SQL statements.
type MemoryRepository struct {
	mu   sync.Mutex
	byID map[string]*domain.Session
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[string]*domain.Session)}
}

func (r *MemoryRepository) Create(ctx context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cur := range r.byID {
		if cur.ID == s.ID || cur.AccessTokenHash == s.AccessTokenHash || cur.RefreshTokenHash == s.RefreshTokenHash {
			return errors.New("duplicate session key")
		}
	}
	c := *s
	r.byID[s.ID] = &c
	return nil
}

func (r *MemoryRepository) find(match func(*domain.Session) bool) *domain.Session {
	for _, s := range r.byID {
		if match(s) {
			c := *s
			return &c
		}
	}
	return nil
}

func (r *MemoryRepository) GetByAccessTokenHash(ctx context.Context, hash string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(func(s *domain.Session) bool { return s.AccessTokenHash == hash }), nil
}

func (r *MemoryRepository) GetByRefreshTokenHash(ctx context.Context, hash string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(func(s *domain.Session) bool { return s.RefreshTokenHash == hash }), nil
}

// GetByID returns a copy of the session for id, or nil. For tests.
func (r *MemoryRepository) GetByID(id string) *domain.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(func(s *domain.Session) bool { return s.ID == id })
}

// Len returns the number of stored sessions. For tests.
func (r *MemoryRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

func (r *MemoryRepository) Rotate(ctx context.Context, rot Rotation) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[rot.SessionID]
	if !ok || s.RefreshTokenHash != rot.OldRefreshHash || !s.IsActive || !s.RefreshExpiresAt.After(rot.Now) {
		return false, nil
	}
	s.AccessTokenHash = rot.AccessHash
	s.RefreshTokenHash = rot.RefreshHash
	s.ExpiresAt = rot.ExpiresAt
	s.RefreshExpiresAt = rot.RefreshExpiresAt
	s.UpdatedAt = rot.Now
	return true, nil
}

func (r *MemoryRepository) RevokeByTokenHash(ctx context.Context, hash string, at time.Time) ([]Revoked, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Revoked
	for _, s := range r.byID {
		if s.IsActive && (s.AccessTokenHash == hash || s.RefreshTokenHash == hash) {
			s.IsActive = false
			s.UpdatedAt = at
			out = append(out, Revoked{SessionID: s.ID, UserID: s.UserID})
		}
	}
	return out, nil
}
