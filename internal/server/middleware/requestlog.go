package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RequestLogger logs one line per request after the response status is known.
// Paths in skip (e.g. health probes) are not logged.
func RequestLogger(log *zap.Logger, skip ...string) fiber.Handler {
	skipped := make(map[string]bool, len(skip))
	for _, p := range skip {
		skipped[p] = true
	}
	return func(c *fiber.Ctx) error {
		if skipped[c.Path()] {
			return c.Next()
		}
		start := time.Now()
		chainErr := c.Next()
		if chainErr != nil {
			// Let the app error handler write the response so the logged status is final.
			if err := c.App().ErrorHandler(c, chainErr); err != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}
		status := c.Response().StatusCode()
		level := zapcore.InfoLevel
		switch {
		case status >= fiber.StatusInternalServerError:
			level = zapcore.ErrorLevel
		case status >= fiber.StatusBadRequest:
			level = zapcore.WarnLevel
		}
		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.IP()),
		}
		if i, ok := CurrentUser(c); ok {
			fields = append(fields, zap.String("user_id", i.ID))
		}
		log.Check(level, "http request").Write(fields...)
		return nil
	}
}
