package utils

import (
	apperrors "exchange/internal/errors"
	"exchange/internal/models"

	"github.com/gofiber/fiber/v2"
)

const ClaimsKey = "claims"

// GetUserClaims extracts the user claims stored by the auth middleware.
func GetUserClaims(c *fiber.Ctx) (*models.UserClaims, error) {
	claims, ok := c.Locals(ClaimsKey).(*models.UserClaims)
	if !ok || claims == nil {
		return nil, apperrors.New(apperrors.CodeAuthentication, "Authentication required", fiber.StatusUnauthorized)
	}
	return claims, nil
}
