package middleware

import (
	"context"

	apperrors "exchange/internal/errors"
	"exchange/internal/services/auth"
	"exchange/internal/utils"

	"github.com/gofiber/fiber/v2"
)

// BanChecker reports whether an IP is under an active ban.
type BanChecker interface {
	IsBanned(ctx context.Context, ip string) (bool, error)
}

// BanCheck rejects every request from a banned IP with 403 {message, banned}
// before any body parsing or authentication runs.
func BanCheck(bans BanChecker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		banned, err := bans.IsBanned(c.UserContext(), c.IP())
		if err != nil {
			return utils.Error(c, apperrors.Internal(err))
		}
		if banned {
			return utils.Error(c, auth.ErrIPBanned)
		}
		return c.Next()
	}
}
