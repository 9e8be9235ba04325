package middleware

import (
	"fmt"
	"time"

	apperrors "exchange/internal/errors"
	"exchange/internal/metrics"
	"exchange/internal/services/abuse"
	"exchange/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

var ErrTooManyLogins = apperrors.RateLimited("Too many login attempts. Please try again later.")

type LoginLimiterConfig struct {
	Max     int
	Window  time.Duration
	Abuse   abuse.Logger
	Metrics *metrics.Metrics
}

// LoginLimiter caps login requests per IP in a fixed window. It runs before
// the ban check and the failed-attempt tracker.
func LoginLimiter(cfg LoginLimiterConfig) fiber.Handler {
	if cfg.Abuse == nil {
		cfg.Abuse = abuse.Nop{}
	}
	return limiter.New(limiter.Config{
		Max:               cfg.Max,
		Expiration:        cfg.Window,
		LimiterMiddleware: limiter.FixedWindow{},
		KeyGenerator: func(c *fiber.Ctx) string {
			return "login:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			cfg.Metrics.RateLimitHit()
			cfg.Abuse.LogAbuse(c.UserContext(), fmt.Sprintf("Login rate limit exceeded for IP %s", c.IP()))
			return utils.Error(c, ErrTooManyLogins)
		},
	})
}
