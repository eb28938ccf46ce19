// Package respond writes the {success, message, data} envelope and maps classified
// failures to HTTP status codes.
package respond

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"xend-auth/backend/internal/apperr"
)

const msgInternal = "Internal server error"

// Envelope is the body of every API response.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// StatusOf maps an error kind to its HTTP status.
func StatusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return fiber.StatusBadRequest
	case apperr.KindAuthentication:
		return fiber.StatusUnauthorized
	case apperr.KindForbidden:
		return fiber.StatusForbidden
	case apperr.KindNotFound:
		return fiber.StatusNotFound
	case apperr.KindConflict:
		return fiber.StatusConflict
	}
	return fiber.StatusInternalServerError
}

// OK writes a success envelope.
func OK(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(Envelope{Success: true, Message: message, Data: data})
}

// Error writes a failure envelope for err. Only the safe message and payload of an
// *apperr.Error reach the client; anything else becomes a generic 500.
func Error(c *fiber.Ctx, err error) error {
	e := apperr.As(err)
	if e == nil {
		zap.L().Error("unclassified request error",
			zap.String("method", c.Method()), zap.String("path", c.Path()), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(Envelope{Message: msgInternal})
	}
	msg := e.Message
	if e.Kind == apperr.KindDependency && msg == "" {
		msg = msgInternal
	}
	env := Envelope{Message: msg}
	if len(e.Data) > 0 {
		env.Data = e.Data
	}
	return c.Status(StatusOf(e.Kind)).JSON(env)
}

// ErrorHandler is the fiber.Config.ErrorHandler: routing errors (404, 405, body limits)
// keep their status, everything else goes through Error.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		msg := fe.Message
		if fe.Code >= fiber.StatusInternalServerError {
			msg = msgInternal
		}
		return c.Status(fe.Code).JSON(Envelope{Message: msg})
	}
	return Error(c, err)
}
