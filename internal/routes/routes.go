// Package routes defines the API routing configuration.
package routes

import (
	"exchange/internal/config"
	"exchange/internal/handlers"
	"exchange/internal/metrics"
	"exchange/internal/middleware"
	"exchange/internal/models"
	"exchange/internal/services/abuse"
	"exchange/internal/services/auth"
	"exchange/internal/services/ban"
	"exchange/internal/services/order"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Dependencies are the wired services the routes hand out to handlers.
type Dependencies struct {
	DB       *gorm.DB
	Redis    redis.UniversalClient // nil when redis is disabled
	Gate     *auth.Gate
	Orders   *order.Service
	Bans     *ban.Service
	Abuse    abuse.Logger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer // nil disables /metrics
	Security config.SecurityConfig
	Secure   bool // mark cookies Secure
}

// SetupRoutes configures all application routes.
func SetupRoutes(app *fiber.App, deps Dependencies) {
	authHandler := handlers.NewAuthHandler(deps.Gate, deps.Secure)
	orderHandler := handlers.NewOrderHandler(deps.Orders)
	adminHandler := handlers.NewAdminHandler(deps.Orders, deps.Bans)
	healthHandler := handlers.NewHealthHandler(deps.DB, deps.Redis)
	authMiddleware := middleware.NewAuthMiddleware(deps.Gate)

	app.Get("/health", healthHandler.HealthCheck)
	if deps.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	api := app.Group("/api")

	// Login rate limit first, then the ban check for every /api route.
	api.Use("/login", middleware.LoginLimiter(middleware.LoginLimiterConfig{
		Max:     deps.Security.RateLimitMax,
		Window:  deps.Security.RateLimitWindow,
		Abuse:   deps.Abuse,
		Metrics: deps.Metrics,
	}))
	api.Use(middleware.BanCheck(deps.Bans))

	api.Post("/login", authHandler.LoginUser)

	requireAuth := authMiddleware.Handler
	api.Post("/logout", requireAuth, authHandler.LogoutUser)
	api.Get("/orders", requireAuth, orderHandler.ListOrders)
	api.Post("/usdc/purchase", requireAuth, orderHandler.PurchaseUSDC)
	api.Post("/usdt/purchase", requireAuth, orderHandler.PurchaseUSDT)
	api.Post("/sepa/deposit", requireAuth, orderHandler.DepositSEPA)

	admin := api.Group("/admin", requireAuth, middleware.AdminAuthMiddleware)
	admin.Get("/orders", adminHandler.ListOrders)
	admin.Patch("/usdc/:id", adminHandler.UpdateOrderStatus(models.OrderKindUSDC))
	admin.Patch("/usdt/:id", adminHandler.UpdateOrderStatus(models.OrderKindUSDT))
	admin.Patch("/sepa/:id", adminHandler.UpdateOrderStatus(models.OrderKindSEPA))

	security := admin.Group("/security")
	security.Get("/bans", adminHandler.ListBans)
	security.Post("/manual-ban", adminHandler.ManualBan)
	security.Post("/unban", adminHandler.Unban)
}
