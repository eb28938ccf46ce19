package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"xend-auth/backend/internal/identity/domain"
)

func TestMemoryRepository_UniqueKeys(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	if err := r.Create(ctx, &domain.Identity{ID: "1", Email: "a@x.com", PhoneNumber: "+1555", GoogleID: "g1"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	tests := []struct {
		name string
		in   *domain.Identity
		want error
	}{
		{"email", &domain.Identity{ID: "2", Email: "a@x.com"}, ErrEmailTaken},
		{"phone", &domain.Identity{ID: "2", PhoneNumber: "+1555"}, ErrPhoneTaken},
		{"provider", &domain.Identity{ID: "2", GoogleID: "g1"}, ErrProviderIDTaken},
	}
	for _, tc := range tests {
		if err := r.Create(ctx, tc.in); !errors.Is(err, tc.want) {
			t.Errorf("%s: Create err = %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestMemoryRepository_Lookups(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	_ = r.Create(ctx, &domain.Identity{ID: "1", Email: "a@x.com", AppleID: "apl"})

	if got, _ := r.GetByEmail(ctx, "a@x.com"); got == nil || got.ID != "1" {
		t.Errorf("GetByEmail = %+v", got)
	}
	if got, _ := r.GetByProviderID(ctx, domain.ProviderApple, "apl"); got == nil || got.ID != "1" {
		t.Errorf("GetByProviderID(apple) = %+v", got)
	}
	if got, _ := r.GetByProviderID(ctx, domain.ProviderGoogle, "apl"); got != nil {
		t.Errorf("GetByProviderID(google) should miss, got %+v", got)
	}
	if got, err := r.GetByPhone(ctx, ""); got != nil || err != nil {
		t.Errorf("GetByPhone(\"\") = %+v, %v", got, err)
	}
	if _, err := r.GetByProviderID(ctx, "github", "x"); err == nil {
		t.Error("unknown provider should error")
	}
}

func TestMemoryRepository_UpdateProfileAndSetActive(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	_ = r.Create(ctx, &domain.Identity{ID: "1", PhoneNumber: "+1555"})
	_ = r.Create(ctx, &domain.Identity{ID: "2", GoogleID: "g"})

	if _, err := r.UpdateProfile(ctx, "2", ProfileUpdate{FirstName: "A", LastName: "B", PhoneNumber: "+1555"}, time.Now()); !errors.Is(err, ErrPhoneTaken) {
		t.Fatalf("UpdateProfile err = %v, want ErrPhoneTaken", err)
	}
	got, err := r.UpdateProfile(ctx, "2", ProfileUpdate{FirstName: "A", LastName: "B", PhoneNumber: "+1666"}, time.Now())
	if err != nil || got == nil || !got.IsProfileComplete || got.PhoneNumber != "+1666" {
		t.Fatalf("UpdateProfile = %+v, %v", got, err)
	}
	if got, _ := r.UpdateProfile(ctx, "missing", ProfileUpdate{}, time.Now()); got != nil {
		t.Errorf("UpdateProfile(missing) = %+v, want nil", got)
	}

	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if err := r.SetActive(ctx, "1", true, at); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if err := r.SetActive(ctx, "1", true, at.Add(time.Hour)); err != nil {
		t.Fatalf("SetActive again: %v", err)
	}
	i, _ := r.GetByID(ctx, "1")
	if !i.IsActive || i.LastActivity == nil || !i.LastActivity.Equal(at) {
		t.Errorf("after SetActive: active=%v last=%v", i.IsActive, i.LastActivity)
	}
}
