package respond

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"xend-auth/backend/internal/apperr"
)

func TestError_StatusAndBody(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
		wantData   bool
	}{
		{"validation", apperr.Validation("bad"), 400, "bad", false},
		{"authentication", apperr.Authentication("nope"), 401, "nope", false},
		{"forbidden", apperr.Forbidden("no"), 403, "no", false},
		{"not found", apperr.NotFound("User not found"), 404, "User not found", false},
		{"conflict with data", apperr.Conflict("taken").WithData("phoneConflict", true), 409, "taken", true},
		{"dependency hides cause", apperr.Dependency("Internal server error", errors.New("dial tcp: refused")), 500, "Internal server error", false},
		{"unclassified", errors.New("boom"), 500, "Internal server error", false},
		{"routing", fiber.ErrMethodNotAllowed, 405, "Method Not Allowed", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
			app.Get("/", func(c *fiber.Ctx) error { return tc.err })
			resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tc.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tc.wantStatus)
			}
			body, _ := io.ReadAll(resp.Body)
			var env Envelope
			if err := json.Unmarshal(body, &env); err != nil {
				t.Fatalf("decode %s: %v", body, err)
			}
			if env.Success || env.Message != tc.wantMsg {
				t.Errorf("envelope = %+v, want message %q", env, tc.wantMsg)
			}
			if (env.Data != nil) != tc.wantData {
				t.Errorf("data = %v, wantData %v", env.Data, tc.wantData)
			}
		})
	}
}

func TestOK(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error { return OK(c, fiber.StatusCreated, "done", fiber.Map{"id": "1"}) })
	resp, _ := app.Test(httptest.NewRequest("GET", "/", nil))
	if resp.StatusCode != 201 {
		t.Errorf("status = %d", resp.StatusCode)
	}
	var env Envelope
	_ = json.NewDecoder(resp.Body).Decode(&env)
	if !env.Success || env.Message != "done" {
		t.Errorf("envelope = %+v", env)
	}
}
