// Package server assembles the HTTP API and the operations gRPC server.
package server

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"go.uber.org/zap"

	"xend-auth/backend/internal/health"
	healthhandler "xend-auth/backend/internal/health/handler"
	identityhandler "xend-auth/backend/internal/identity/handler"
	"xend-auth/backend/internal/platform/rbac"
	"xend-auth/backend/internal/platform/respond"
	"xend-auth/backend/internal/policy/engine"
	"xend-auth/backend/internal/server/middleware"
)

const healthPath = "/healthz"

// HTTPDeps are the collaborators of the HTTP API. Presence may be nil.
type HTTPDeps struct {
	Identity    *identityhandler.Handler
	Auth        middleware.Authenticator
	Presence    middleware.Heartbeater
	Policy      engine.Evaluator
	Health      *health.Checker
	Log         *zap.Logger
	CORSOrigins string
}

// NewHTTP returns the fiber app serving /healthz and the /api/v1 routes.
func NewHTTP(d HTTPDeps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "xend-auth",
		ErrorHandler:          respond.ErrorHandler,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		IdleTimeout:           60 * time.Second,
		BodyLimit:             64 * 1024,
		DisableStartupMessage: true,
	})

	origins := d.CORSOrigins
	if origins == "" {
		origins = "*"
	}
	app.Use(
		middleware.Recover(d.Log),
		middleware.Telemetry(),
		middleware.RequestLogger(d.Log, healthPath),
		cors.New(cors.Config{
			AllowOrigins: origins,
			AllowMethods: "GET,POST,OPTIONS",
			AllowHeaders: "Content-Type,Authorization,traceparent,tracestate",
		}),
	)

	app.Get(healthPath, healthhandler.HTTP(d.Health))

	d.Identity.Mount(app.Group("/api/v1"), identityhandler.Guards{
		Authenticate:           middleware.Authenticate(d.Auth, d.Presence),
		RequireCompleteProfile: middleware.RequireCompleteProfile(),
		CanReadUser:            rbac.Require(d.Policy, engine.ActionUserRead, "user", "id"),
	})
	return app
}
