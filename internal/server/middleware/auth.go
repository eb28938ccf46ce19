package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"xend-auth/backend/internal/apperr"
	"xend-auth/backend/internal/identity/domain"
	"xend-auth/backend/internal/platform/respond"
)

const bearerPrefix = "bearer "

// Authenticator resolves an access token to the identity of its live session.
type Authenticator interface {
	AuthenticateAccess(ctx context.Context, accessToken string) (*domain.Identity, error)
}

// Heartbeater refreshes the presence of an identity. It must not fail the request.
type Heartbeater interface {
	Heartbeat(ctx context.Context, i *domain.Identity)
}

// Authenticate requires a Bearer access token bound to an active session and stores the
// identity on the request. When presence is non-nil, every authenticated request is a heartbeat.
func Authenticate(auth Authenticator, presence Heartbeater) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
		if header == "" {
			return respond.Error(c, apperr.Authentication("Authorization header is missing"))
		}
		token := extractBearer(header)
		if token == "" {
			return respond.Error(c, apperr.Authentication("Invalid authorization header format"))
		}
		i, err := auth.AuthenticateAccess(c.UserContext(), token)
		if err != nil {
			return respond.Error(c, err)
		}
		SetIdentity(c, i, token)
		if presence != nil {
			presence.Heartbeat(c.UserContext(), i)
		}
		return c.Next()
	}
}

// RequireCompleteProfile rejects identities that have not finished onboarding. Must run
// after Authenticate.
func RequireCompleteProfile() fiber.Handler {
	return func(c *fiber.Ctx) error {
		i, ok := CurrentUser(c)
		if !ok {
			return respond.Error(c, apperr.Authentication("Authentication required"))
		}
		if !i.IsProfileComplete {
			return respond.Error(c, apperr.Forbidden("Profile incomplete. Please provide phone number."))
		}
		return c.Next()
	}
}

func extractBearer(v string) string {
	if len(v) < len(bearerPrefix) || !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
