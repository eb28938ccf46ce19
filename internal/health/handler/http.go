// Package handler serves the readiness report over HTTP and the gRPC health protocol.
package handler

import (
	"github.com/gofiber/fiber/v2"

	"xend-auth/backend/internal/health"
)

// HTTP returns the GET /healthz handler: 200 with the report when ready, 503 otherwise.
func HTTP(checker *health.Checker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rep := checker.Run(c.UserContext())
		status := fiber.StatusOK
		if !rep.Ready() {
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(rep)
	}
}
