// Package middleware provides the fiber middleware for authentication,
// role checks and login rate limiting.
package middleware

import (
	"context"
	"strings"

	apperrors "exchange/internal/errors"
	"exchange/internal/models"
	"exchange/internal/utils"

	"github.com/gofiber/fiber/v2"
)

const AccessTokenCookie = "access_token"

// Authenticator validates a token and the session behind it.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.UserClaims, error)
}

type AuthMiddleware struct {
	auth Authenticator
}

func NewAuthMiddleware(auth Authenticator) *AuthMiddleware {
	return &AuthMiddleware{auth: auth}
}

// Handler accepts "Authorization: Bearer <token>" or the access_token
// cookie and stores the claims in the request context.
func (m *AuthMiddleware) Handler(c *fiber.Ctx) error {
	token := bearerToken(c.Get(fiber.HeaderAuthorization))
	if token == "" {
		token = c.Cookies(AccessTokenCookie)
	}
	if token == "" {
		return utils.Error(c, apperrors.New(apperrors.CodeAuthentication, "Authentication required", fiber.StatusUnauthorized))
	}

	claims, err := m.auth.Authenticate(c.UserContext(), token)
	if err != nil {
		return utils.Error(c, err)
	}

	c.Locals(utils.ClaimsKey, claims)
	return c.Next()
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// AdminAuthMiddleware lets only admins through.
func AdminAuthMiddleware(c *fiber.Ctx) error {
	return RequireRole(models.RoleAdmin)(c)
}

// RequireRole returns a middleware that checks for a minimum role.
func RequireRole(required string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := utils.GetUserClaims(c)
		if err != nil {
			return utils.Error(c, err)
		}
		if !hasRequiredRole(claims.Role, required) {
			return utils.Error(c, apperrors.Authorization("Insufficient permissions"))
		}
		return c.Next()
	}
}

// hasRequiredRole compares roles along user < contractor < employee < admin.
func hasRequiredRole(userRole, requiredRole string) bool {
	roleHierarchy := map[string]int{
		models.RoleUser:       1,
		models.RoleContractor: 2,
		models.RoleEmployee:   3,
		models.RoleAdmin:      4,
	}
	return roleHierarchy[userRole] >= roleHierarchy[requiredRole] && roleHierarchy[userRole] > 0
}
