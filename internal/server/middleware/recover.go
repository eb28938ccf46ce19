package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"xend-auth/backend/internal/platform/respond"
)

// Recover turns a handler panic into a generic 500 and logs the stack.
func Recover(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic in handler",
					zap.String("method", c.Method()),
					zap.String("path", c.Path()),
					zap.String("panic", fmt.Sprint(r)),
					zap.ByteString("stack", debug.Stack()))
				err = respond.Error(c, fmt.Errorf("panic: %v", r))
			}
		}()
		return c.Next()
	}
}
