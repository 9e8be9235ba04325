package utils

import (
	"log/slog"

	apperrors "exchange/internal/errors"

	"github.com/gofiber/fiber/v2"
)

// Respond sends a JSON response with the specified status code.
func Respond(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(data)
}

// Success sends a successful JSON response.
func Success(c *fiber.Ctx, data interface{}) error {
	return Respond(c, fiber.StatusOK, data)
}

// Message sends {message} with the given status.
func Message(c *fiber.Ctx, status int, message string) error {
	return Respond(c, status, fiber.Map{"message": message})
}

// Error renders err as {message, ...fields}. Internal causes are logged,
// never sent to the client.
func Error(c *fiber.Ctx, err error) error {
	de := apperrors.As(err)
	if de.Status >= fiber.StatusInternalServerError {
		slog.Default().ErrorContext(c.UserContext(), "request failed",
			"method", c.Method(),
			"path", c.Path(),
			"code", de.Code,
			"error", err,
		)
	}

	body := fiber.Map{"message": de.Message}
	for k, v := range de.Fields {
		body[k] = v
	}
	return Respond(c, de.Status, body)
}
