// Package rbac gates routes on the access policy.
package rbac

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"xend-auth/backend/internal/apperr"
	"xend-auth/backend/internal/platform/respond"
	"xend-auth/backend/internal/policy/engine"
	"xend-auth/backend/internal/server/middleware"
)

// Require lets the request through only when the policy allows the authenticated caller to
// perform action on the resource owned by the route parameter ownerParam. Must run after
// middleware.Authenticate.
func Require(eval engine.Evaluator, action, resourceType, ownerParam string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := middleware.CurrentUser(c)
		if !ok {
			return respond.Error(c, apperr.Authentication("Authentication required"))
		}
		in := engine.Input{
			Action: action,
			Subject: engine.Subject{
				ID:                user.ID,
				Role:              string(user.Role),
				IsProfileComplete: user.IsProfileComplete,
			},
			Resource: engine.Resource{Type: resourceType, OwnerID: c.Params(ownerParam)},
		}
		allowed, err := eval.Allow(c.UserContext(), in)
		if err != nil {
			zap.L().Error("rbac: policy evaluation failed", zap.String("action", action), zap.Error(err))
			return respond.Error(c, apperr.Dependency("Internal server error", err))
		}
		if !allowed {
			return respond.Error(c, apperr.Forbidden("Access denied"))
		}
		return c.Next()
	}
}
