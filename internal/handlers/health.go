package handlers

import (
	"context"
	"time"

	"exchange/internal/repositories/cache"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type HealthHandler struct {
	db    *gorm.DB
	redis redis.UniversalClient
}

// NewHealthHandler reports on db and, when configured, redis.
func NewHealthHandler(db *gorm.DB, rdb redis.UniversalClient) *HealthHandler {
	return &HealthHandler{db: db, redis: rdb}
}

func (h *HealthHandler) HealthCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	status := fiber.StatusOK
	services := fiber.Map{"database": "connected", "redis": "disabled"}

	if err := h.pingDB(ctx); err != nil {
		status = fiber.StatusServiceUnavailable
		services["database"] = "unavailable"
	}
	if h.redis != nil {
		services["redis"] = "connected"
		if err := cache.HealthCheck(ctx, h.redis); err != nil {
			status = fiber.StatusServiceUnavailable
			services["redis"] = "unavailable"
		}
	}

	overall := "ok"
	if status != fiber.StatusOK {
		overall = "degraded"
	}
	return c.Status(status).JSON(fiber.Map{"status": overall, "services": services})
}

func (h *HealthHandler) pingDB(ctx context.Context) error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
