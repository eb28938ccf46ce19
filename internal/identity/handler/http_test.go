package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"xend-auth/backend/internal/identity/repository"
	"xend-auth/backend/internal/identity/service"
	"xend-auth/backend/internal/platform/rbac"
	"xend-auth/backend/internal/platform/respond"
	"xend-auth/backend/internal/policy/engine"
	"xend-auth/backend/internal/security"
	"xend-auth/backend/internal/server/middleware"
	sessionrepo "xend-auth/backend/internal/session/repository"
	sessionservice "xend-auth/backend/internal/session/service"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type authData struct {
	User struct {
		ID                string `json:"id"`
		PhoneNumber       string `json:"phoneNumber"`
		IsProfileComplete bool   `json:"isProfileComplete"`
	} `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	Exists       bool   `json:"exists"`
	NeedsPhone   bool   `json:"needsPhone"`
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	ids := repository.NewMemoryRepository()
	mgr := sessionservice.NewManager(sessionrepo.NewMemoryRepository(), ids, security.NewTestIssuer(), nil, nil)
	auth := service.NewAuthService(ids, mgr, security.NewHasher(4), nil, service.Config{}, nil)
	policy, err := engine.NewOPAEvaluator(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	app := fiber.New(fiber.Config{ErrorHandler: respond.ErrorHandler})
	New(auth, mgr, nil).Mount(app.Group("/api/v1"), Guards{
		Authenticate:           middleware.Authenticate(mgr, nil),
		RequireCompleteProfile: middleware.RequireCompleteProfile(),
		CanReadUser:            rbac.Require(policy, engine.ActionUserRead, "user", "id"),
	})
	return app
}

func call(t *testing.T, app *fiber.App, method, path string, body any, token string) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("%s %s: decode: %v", method, path, err)
	}
	return resp.StatusCode, env
}

func decodeAuth(t *testing.T, env envelope) authData {
	t.Helper()
	var d authData
	if err := json.Unmarshal(env.Data, &d); err != nil {
		t.Fatalf("decode data %s: %v", env.Data, err)
	}
	return d
}

func TestRegisterLoginRefreshLogout(t *testing.T) {
	app := newTestApp(t)
	reg := map[string]string{"email": "a@x.com", "password": "password123", "firstName": "Ada", "lastName": "L"}

	status, env := call(t, app, "POST", "/api/v1/auth/register", reg, "")
	if status != 201 || !env.Success || env.Message != "User registered successfully" {
		t.Fatalf("register = %d %+v", status, env)
	}
	if status, env = call(t, app, "POST", "/api/v1/auth/register", reg, ""); status != 409 || env.Message != "User already exists with this email" {
		t.Errorf("duplicate register = %d %q", status, env.Message)
	}

	if status, env = call(t, app, "POST", "/api/v1/auth/login", map[string]string{"email": "a@x.com", "password": "nope-nope"}, ""); status != 401 {
		t.Errorf("bad login status = %d", status)
	}
	status, env = call(t, app, "POST", "/api/v1/auth/login", map[string]string{"identifier": "a@x.com", "password": "password123"}, "")
	if status != 200 || env.Message != "Login successful" {
		t.Fatalf("login = %d %+v", status, env)
	}
	login := decodeAuth(t, env)

	if status, _ = call(t, app, "GET", "/api/v1/auth/me", nil, login.AccessToken); status != 200 {
		t.Errorf("me status = %d", status)
	}

	status, env = call(t, app, "POST", "/api/v1/auth/refresh", map[string]string{"refreshToken": login.RefreshToken}, "")
	if status != 200 {
		t.Fatalf("refresh = %d %+v", status, env)
	}
	rotated := decodeAuth(t, env)
	if status, env = call(t, app, "POST", "/api/v1/auth/refresh", map[string]string{"refreshToken": login.RefreshToken}, ""); status != 401 || env.Message != "Invalid or expired refresh token" {
		t.Errorf("replayed refresh = %d %q", status, env.Message)
	}
	if status, _ = call(t, app, "GET", "/api/v1/auth/me", nil, login.AccessToken); status != 401 {
		t.Errorf("old access token after rotation status = %d, want 401", status)
	}

	if status, env = call(t, app, "POST", "/api/v1/auth/logout", nil, rotated.AccessToken); status != 200 || env.Message != "Logged out successfully" {
		t.Fatalf("logout = %d %+v", status, env)
	}
	if status, _ = call(t, app, "GET", "/api/v1/auth/me", nil, rotated.AccessToken); status != 401 {
		t.Errorf("me after logout status = %d, want 401", status)
	}
	if status, _ = call(t, app, "POST", "/api/v1/auth/refresh", map[string]string{"refreshToken": rotated.RefreshToken}, ""); status != 401 {
		t.Errorf("refresh after logout status = %d, want 401", status)
	}
}

func TestLogout_RevokesBodyRefreshToken(t *testing.T) {
	app := newTestApp(t)
	reg := map[string]string{"email": "b@x.com", "password": "password123", "firstName": "B", "lastName": "B"}
	_, env := call(t, app, "POST", "/api/v1/auth/register", reg, "")
	first := decodeAuth(t, env)
	_, env = call(t, app, "POST", "/api/v1/auth/login", map[string]string{"email": "b@x.com", "password": "password123"}, "")
	second := decodeAuth(t, env)

	status, _ := call(t, app, "POST", "/api/v1/auth/logout", map[string]string{"refreshToken": second.RefreshToken}, first.AccessToken)
	if status != 200 {
		t.Fatalf("logout status = %d", status)
	}
	if status, _ = call(t, app, "GET", "/api/v1/auth/me", nil, second.AccessToken); status != 401 {
		t.Errorf("second session should be revoked, me status = %d", status)
	}
}

func TestProviderOnboardingAndUserLookup(t *testing.T) {
	app := newTestApp(t)

	status, env := call(t, app, "POST", "/api/v1/auth/login_provider", map[string]string{"provider": "google", "providerId": "g-1", "firstName": "G", "lastName": "H"}, "")
	if status != 201 || env.Message != "User registered, phone required" {
		t.Fatalf("first provider login = %d %+v", status, env)
	}
	p := decodeAuth(t, env)
	if p.Exists || !p.NeedsPhone || p.User.IsProfileComplete {
		t.Errorf("onboarding hints = %+v", p)
	}

	// Incomplete profiles are kept out of user lookups.
	status, env = call(t, app, "GET", "/api/v1/users/"+p.User.ID, nil, p.AccessToken)
	if status != 403 || env.Message != "Profile incomplete. Please provide phone number." {
		t.Errorf("incomplete lookup = %d %q", status, env.Message)
	}

	status, env = call(t, app, "POST", "/api/v1/auth/complete_profile", map[string]string{"phoneNumber": "+15550001"}, p.AccessToken)
	if status != 200 {
		t.Fatalf("complete_profile = %d %+v", status, env)
	}

	// The access token was minted before completion but the session resolves the fresh row.
	status, env = call(t, app, "GET", "/api/v1/users/"+p.User.ID, nil, p.AccessToken)
	if status != 200 {
		t.Fatalf("self lookup = %d %+v", status, env)
	}

	status, env = call(t, app, "POST", "/api/v1/auth/login_provider", map[string]string{"provider": "google", "providerId": "g-1"}, "")
	if status != 200 || !decodeAuth(t, env).Exists {
		t.Errorf("second provider login = %d %+v", status, env)
	}

	_, env = call(t, app, "POST", "/api/v1/auth/register", map[string]string{"email": "o@x.com", "password": "password123", "firstName": "O", "lastName": "P"}, "")
	other := decodeAuth(t, env)
	if status, _ = call(t, app, "GET", "/api/v1/users/"+other.User.ID, nil, p.AccessToken); status != 403 {
		t.Errorf("cross-user lookup status = %d, want 403", status)
	}

	// Phone already taken by the provider identity.
	status, env = call(t, app, "POST", "/api/v1/auth/complete_profile", map[string]string{"phoneNumber": "+15550001"}, other.AccessToken)
	if status != 409 {
		t.Fatalf("phone conflict status = %d", status)
	}
	var data map[string]bool
	_ = json.Unmarshal(env.Data, &data)
	if !data["phoneConflict"] {
		t.Errorf("conflict data = %s", env.Data)
	}
}

func TestBadInput(t *testing.T) {
	app := newTestApp(t)
	tests := []struct {
		name    string
		path    string
		body    any
		wantMsg string
	}{
		{"type mismatch", "/api/v1/auth/login", `{"email":"a@x.com","password":12345678}`, "Invalid input types"},
		{"malformed json", "/api/v1/auth/register", `{"email":`, "Invalid request body"},
		{"missing refresh token", "/api/v1/auth/refresh", map[string]string{}, "refreshToken is required"},
		{"bad email", "/api/v1/auth/register", map[string]string{"email": "nope", "password": "password123", "firstName": "A", "lastName": "B"}, "email must be a valid email address"},
		{"phone field in email mode", "/api/v1/auth/login", map[string]string{"phoneNumber": "+15550001", "password": "password123"}, "Email and password are required"},
		{"unknown provider", "/api/v1/auth/login_provider", map[string]string{"provider": "myspace", "providerId": "1"}, "Unsupported provider"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, env := call(t, app, "POST", tc.path, tc.body, "")
			if status != 400 || env.Message != tc.wantMsg {
				t.Errorf("= %d %q, want 400 %q", status, env.Message, tc.wantMsg)
			}
		})
	}
	if status, env := call(t, app, "GET", "/api/v1/auth/me", nil, ""); status != 401 || env.Message != "Authorization header is missing" {
		t.Errorf("me without header = %d %q", status, env.Message)
	}
}
