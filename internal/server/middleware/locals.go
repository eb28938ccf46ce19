package middleware

import (
	"github.com/gofiber/fiber/v2"

	"xend-auth/backend/internal/identity/domain"
)

const (
	userKey  = "auth.user"
	tokenKey = "auth.token"
)

// SetIdentity stores the authenticated identity and its bearer token on the request.
func SetIdentity(c *fiber.Ctx, i *domain.Identity, token string) {
	c.Locals(userKey, i)
	c.Locals(tokenKey, token)
}

// CurrentUser returns the identity set by Authenticate, or nil, false.
func CurrentUser(c *fiber.Ctx) (*domain.Identity, bool) {
	i, ok := c.Locals(userKey).(*domain.Identity)
	return i, ok && i != nil
}

// AccessToken returns the bearer token set by Authenticate, or "".
func AccessToken(c *fiber.Ctx) string {
	t, _ := c.Locals(tokenKey).(string)
	return t
}
