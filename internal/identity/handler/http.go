// Package handler exposes the auth core over HTTP (fiber) under /auth and /users.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"xend-auth/backend/internal/apperr"
	"xend-auth/backend/internal/config"
	"xend-auth/backend/internal/identity/domain"
	"xend-auth/backend/internal/identity/service"
	"xend-auth/backend/internal/platform/respond"
	"xend-auth/backend/internal/platform/validate"
	"xend-auth/backend/internal/server/middleware"
	sessionservice "xend-auth/backend/internal/session/service"
)

// AuthService is the credential verifier used by the handler.
type AuthService interface {
	Register(ctx context.Context, in service.RegisterInput) (*service.AuthResult, error)
	LoginPassword(ctx context.Context, identifier, password string) (*service.AuthResult, error)
	LoginProvider(ctx context.Context, in service.ProviderLoginInput) (*service.AuthResult, error)
	CompleteProfile(ctx context.Context, userID string, in service.ProfileInput) (*domain.Identity, error)
	GetUser(ctx context.Context, id string) (*domain.Identity, error)
	LoginIdentifier() string
}

// Sessions rotates and revokes sessions.
type Sessions interface {
	Rotate(ctx context.Context, refreshToken string) (*sessionservice.Issued, error)
	Revoke(ctx context.Context, token string) error
}

// Guards are the route middlewares supplied by the server.
type Guards struct {
	Authenticate           fiber.Handler
	RequireCompleteProfile fiber.Handler
	CanReadUser            fiber.Handler
}

// Handler serves the auth and user routes.
type Handler struct {
	auth     AuthService
	sessions Sessions
	validate *validate.Validator
}

// New returns a Handler.
func New(auth AuthService, sessions Sessions, v *validate.Validator) *Handler {
	if v == nil {
		v = validate.New()
	}
	return &Handler{auth: auth, sessions: sessions, validate: v}
}

// Mount registers the routes on r (normally the /api/v1 group).
func (h *Handler) Mount(r fiber.Router, g Guards) {
	auth := r.Group("/auth")
	auth.Post("/register", h.Register)
	auth.Post("/login", h.Login)
	auth.Post("/login_provider", h.LoginProvider)
	auth.Post("/refresh", h.Refresh)
	auth.Post("/complete_profile", g.Authenticate, h.CompleteProfile)
	auth.Post("/logout", g.Authenticate, h.Logout)
	auth.Get("/me", g.Authenticate, h.Me)

	users := r.Group("/users", g.Authenticate, g.RequireCompleteProfile)
	users.Get("/:id", g.CanReadUser, h.GetUser)
}

type registerRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
}

type loginRequest struct {
	Identifier  string `json:"identifier"`
	Email       string `json:"email" validate:"omitempty,email"`
	PhoneNumber string `json:"phoneNumber"`
	Password    string `json:"password" validate:"required"`
}

type providerLoginRequest struct {
	Provider   string `json:"provider" validate:"required"`
	ProviderID string `json:"providerId" validate:"required"`
	Email      string `json:"email" validate:"omitempty,email"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
}

type completeProfileRequest struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	PhoneNumber string `json:"phoneNumber"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokensResponse struct {
	AccessToken           string    `json:"accessToken"`
	RefreshToken          string    `json:"refreshToken"`
	AccessTokenExpiresAt  time.Time `json:"accessTokenExpiresAt"`
	RefreshTokenExpiresAt time.Time `json:"refreshTokenExpiresAt"`
}

type userResponse struct {
	User domain.PublicIdentity `json:"user"`
}

// Register handles POST /auth/register.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := h.bind(c, &req); err != nil {
		return respond.Error(c, err)
	}
	res, err := h.auth.Register(c.UserContext(), service.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		return respond.Error(c, err)
	}
	return respond.OK(c, fiber.StatusCreated, "User registered successfully", res)
}

// Login handles POST /auth/login. The identifier is sent as identifier, or as email or
// phoneNumber matching the configured login identifier; the other field is ignored.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := h.bind(c, &req); err != nil {
		return respond.Error(c, err)
	}
	byKind := req.Email
	if h.auth.LoginIdentifier() == config.LoginIdentifierPhone {
		byKind = req.PhoneNumber
	}
	identifier := firstNonEmpty(req.Identifier, byKind)
	res, err := h.auth.LoginPassword(c.UserContext(), identifier, req.Password)
	if err != nil {
		return respond.Error(c, err)
	}
	if !res.Exists {
		return respond.OK(c, fiber.StatusCreated, "User registered, name required", res)
	}
	return respond.OK(c, fiber.StatusOK, "Login successful", res)
}

// LoginProvider handles POST /auth/login_provider.
func (h *Handler) LoginProvider(c *fiber.Ctx) error {
	var req providerLoginRequest
	if err := h.bind(c, &req); err != nil {
		return respond.Error(c, err)
	}
	res, err := h.auth.LoginProvider(c.UserContext(), service.ProviderLoginInput{
		Provider:   req.Provider,
		ProviderID: req.ProviderID,
		Email:      req.Email,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
	})
	if err != nil {
		return respond.Error(c, err)
	}
	if !res.Exists {
		return respond.OK(c, fiber.StatusCreated, "User registered, phone required", res)
	}
	return respond.OK(c, fiber.StatusOK, "Login successful", res)
}

// CompleteProfile handles POST /auth/complete_profile for the authenticated user.
func (h *Handler) CompleteProfile(c *fiber.Ctx) error {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return respond.Error(c, apperr.Authentication("Authentication required"))
	}
	var req completeProfileRequest
	if err := h.bind(c, &req); err != nil {
		return respond.Error(c, err)
	}
	updated, err := h.auth.CompleteProfile(c.UserContext(), user.ID, service.ProfileInput{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		return respond.Error(c, err)
	}
	return respond.OK(c, fiber.StatusOK, "Profile completed successfully", userResponse{User: updated.Public()})
}

// Refresh handles POST /auth/refresh.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := h.bind(c, &req); err != nil {
		return respond.Error(c, err)
	}
	issued, err := h.sessions.Rotate(c.UserContext(), req.RefreshToken)
	if err != nil {
		return respond.Error(c, err)
	}
	return respond.OK(c, fiber.StatusOK, "Token refreshed successfully", tokensResponse{
		AccessToken:           issued.AccessToken,
		RefreshToken:          issued.RefreshToken,
		AccessTokenExpiresAt:  issued.AccessExpiresAt,
		RefreshTokenExpiresAt: issued.RefreshExpiresAt,
	})
}

// Logout handles POST /auth/logout: the session of the bearer token is revoked, and so is
// the session of an optional refreshToken in the body.
func (h *Handler) Logout(c *fiber.Ctx) error {
	var req logoutRequest
	if len(c.Body()) > 0 {
		if err := h.bind(c, &req); err != nil {
			return respond.Error(c, err)
		}
	}
	if err := h.sessions.Revoke(c.UserContext(), middleware.AccessToken(c)); err != nil {
		return respond.Error(c, err)
	}
	if req.RefreshToken != "" {
		if err := h.sessions.Revoke(c.UserContext(), req.RefreshToken); err != nil {
			return respond.Error(c, err)
		}
	}
	return respond.OK(c, fiber.StatusOK, "Logged out successfully", nil)
}

// Me handles GET /auth/me.
func (h *Handler) Me(c *fiber.Ctx) error {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return respond.Error(c, apperr.Authentication("Authentication required"))
	}
	return respond.OK(c, fiber.StatusOK, "User retrieved successfully", userResponse{User: user.Public()})
}

// GetUser handles GET /users/:id.
func (h *Handler) GetUser(c *fiber.Ctx) error {
	user, err := h.auth.GetUser(c.UserContext(), c.Params("id"))
	if err != nil {
		return respond.Error(c, err)
	}
	return respond.OK(c, fiber.StatusOK, "User retrieved successfully", userResponse{User: user.Public()})
}

// bind decodes the JSON body into dst and validates it.
func (h *Handler) bind(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return apperr.Validation("Invalid input types")
		}
		return apperr.Validation("Invalid request body")
	}
	if err := h.validate.Struct(dst); err != nil {
		return apperr.Validation(err.Error())
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
