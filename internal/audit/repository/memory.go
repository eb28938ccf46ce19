package repository

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepository is an in-process Repository for tests.
type MemoryRepository struct {
	mu   sync.Mutex
	byID map[string]*Record
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[string]*Record)}
}

func (r *MemoryRepository) Save(ctx context.Context, rec *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[rec.ID]; ok {
		return nil
	}
	c := *rec
	r.byID[rec.ID] = &c
	return nil
}

func (r *MemoryRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Record
	for _, rec := range r.byID {
		if rec.UserID == userID {
			c := *rec
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Len returns the number of stored records.
func (r *MemoryRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}
