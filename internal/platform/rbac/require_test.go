package rbac

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"xend-auth/backend/internal/identity/domain"
	"xend-auth/backend/internal/platform/respond"
	"xend-auth/backend/internal/policy/engine"
	"xend-auth/backend/internal/server/middleware"
)

type stubEvaluator struct {
	err error
	got engine.Input
}

func (s *stubEvaluator) Allow(ctx context.Context, in engine.Input) (bool, error) {
	s.got = in
	if s.err != nil {
		return false, s.err
	}
	return in.Subject.ID == in.Resource.OwnerID, nil
}

func newApp(eval engine.Evaluator, user *domain.Identity) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: respond.ErrorHandler})
	app.Get("/users/:id",
		func(c *fiber.Ctx) error {
			if user != nil {
				middleware.SetIdentity(c, user, "tok")
			}
			return c.Next()
		},
		Require(eval, engine.ActionUserRead, "user", "id"),
		func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) },
	)
	return app
}

func TestRequire(t *testing.T) {
	user := &domain.Identity{ID: "u-1", Role: domain.RoleUser, IsProfileComplete: true}
	tests := []struct {
		name       string
		eval       *stubEvaluator
		user       *domain.Identity
		path       string
		wantStatus int
	}{
		{"allowed", &stubEvaluator{}, user, "/users/u-1", 204},
		{"denied", &stubEvaluator{}, user, "/users/u-2", 403},
		{"unauthenticated", &stubEvaluator{}, nil, "/users/u-1", 401},
		{"evaluator error", &stubEvaluator{err: errors.New("boom")}, user, "/users/u-1", 500},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := newApp(tc.eval, tc.user).Test(httptest.NewRequest("GET", tc.path, nil))
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tc.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tc.wantStatus)
			}
		})
	}
}

func TestRequire_PassesInput(t *testing.T) {
	eval := &stubEvaluator{}
	admin := &domain.Identity{ID: "a-1", Role: domain.RoleAdmin}
	_, _ = newApp(eval, admin).Test(httptest.NewRequest("GET", "/users/u-7", nil))
	want := engine.Input{
		Action:   engine.ActionUserRead,
		Subject:  engine.Subject{ID: "a-1", Role: "admin"},
		Resource: engine.Resource{Type: "user", OwnerID: "u-7"},
	}
	if eval.got != want {
		t.Errorf("input = %+v, want %+v", eval.got, want)
	}
}

func TestRequire_WithOPADefaultPolicy(t *testing.T) {
	eval, err := engine.NewOPAEvaluator(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	user := &domain.Identity{ID: "u-1", Role: domain.RoleUser}
	for path, want := range map[string]int{"/users/u-1": 204, "/users/u-2": 403} {
		resp, _ := newApp(eval, user).Test(httptest.NewRequest("GET", path, nil))
		if resp.StatusCode != want {
			t.Errorf("%s: status = %d, want %d", path, resp.StatusCode, want)
		}
	}
}
