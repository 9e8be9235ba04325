// Package main is the entry point for the exchange API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"exchange/internal/config"
	"exchange/internal/logger"
	"exchange/internal/metrics"
	"exchange/internal/repositories"
	"exchange/internal/repositories/cache"
	"exchange/internal/routes"
	"exchange/internal/services/abuse"
	"exchange/internal/services/attempts"
	"exchange/internal/services/auth"
	"exchange/internal/services/ban"
	"exchange/internal/services/captcha"
	"exchange/internal/services/notification"
	"exchange/internal/services/order"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

func main() {
	config.LoadEnv()
	cfg := config.Load()

	appLogger := logger.New(cfg.Env == "production")
	slog.SetDefault(appLogger)

	if cfg.JWT.Secret == "" {
		log.Fatal("JWT_SECRET must be set")
	}

	db, err := repositories.Open(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := repositories.Close(db); err != nil {
			appLogger.Error("failed to close database", "error", err)
		}
	}()
	if err := repositories.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// rdb stays a nil interface when redis is disabled.
	var rdb redis.UniversalClient
	if cfg.Redis.Enabled {
		client := cache.NewRedisClient(&cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := cache.HealthCheck(context.Background(), client); err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer client.Close()
		rdb = client
		appLogger.Info("redis connected", "addr", cfg.Redis.Host+":"+cfg.Redis.Port)
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	abuseLog := abuse.Multi{abuse.NewSlogLogger(appLogger)}
	fileLog, err := abuse.NewFileLogger(cfg.Security.AbuseLogFile, abuse.WithLogger(appLogger))
	if err != nil {
		log.Fatalf("Failed to open abuse log: %v", err)
	}
	abuseLog = append(abuseLog, fileLog)
	if cfg.Security.AbuseLogDB {
		abuseLog = append(abuseLog, abuse.NewDBLogger(db, appLogger))
	}

	sinks := []notification.Sink{notification.NewLogSink(appLogger)}
	if cfg.Notify.WebhookURL != "" {
		sinks = append(sinks, notification.NewWebhookSink(cfg.Notify.WebhookURL, 5*time.Second))
	}
	dispatcher := notification.NewDispatcher(sinks,
		notification.WithLogger(appLogger),
		notification.WithMetrics(m),
		notification.WithWorkers(cfg.Notify.Workers),
		notification.WithQueueSize(cfg.Notify.QueueSize),
		notification.WithRetry(cfg.Notify.MaxAttempts, cfg.Notify.Backoff),
	)

	banStore, offenders, err := banBackends(cfg, db, rdb)
	if err != nil {
		log.Fatalf("Failed to initialize ban store: %v", err)
	}
	bans := ban.NewService(banStore, offenders,
		ban.WithConfig(ban.Config{
			BaseDuration:    cfg.Security.BanBaseDuration,
			MaxMultiplier:   cfg.Security.BanMaxMultiplier,
			NotifyThreshold: cfg.Security.BanNotifyThreshold,
		}),
		ban.WithLogger(appLogger),
		ban.WithMetrics(m),
		ban.WithAbuseLogger(abuseLog),
		ban.WithNotifier(dispatcher),
	)

	var attemptStore attempts.Store = attempts.NewMemoryStore()
	if rdb != nil {
		attemptStore = attempts.NewRedisStore(rdb)
	}
	tracker := attempts.NewTracker(attemptStore, bans,
		attempts.WithThresholds(cfg.Security.CaptchaThreshold, cfg.Security.BanThreshold),
		attempts.WithStaleAfter(cfg.Security.AttemptStaleAfter),
		attempts.WithLogger(appLogger),
	)

	users := repositories.NewUserRepository(db)
	sessions := repositories.NewSessionRepository(db)
	sweeper := attempts.NewSweeper(tracker,
		attempts.WithInterval(cfg.Security.AttemptSweepInterval),
		attempts.WithSweeperLogger(appLogger),
		attempts.WithSweeperMetrics(m),
		attempts.WithExpiredSessions(sessions),
	)

	validator := captcha.NewValidator(cfg.Captcha,
		captcha.WithAbuseLogger(abuseLog),
		captcha.WithMetrics(m),
		captcha.WithLogger(appLogger),
	)
	gate := auth.NewGate(users, sessions, bans, tracker, validator, cfg.JWT,
		auth.WithLogger(appLogger),
		auth.WithMetrics(m),
	)
	orders := order.NewService(db, repositories.NewOrderRepository(db), cfg.Orders,
		order.WithLogger(appLogger),
		order.WithMetrics(m),
		order.WithNotifier(dispatcher),
	)

	app := fiber.New(fiber.Config{
		ProxyHeader:  cfg.ProxyHeader,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	})
	app.Use(cors.New(cors.Config{
		AllowOrigins:     config.GetEnv("CORS_ORIGINS", "http://localhost:5173"),
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Client-Type, X-App-Key",
		AllowMethods:     "GET,POST,HEAD,PUT,DELETE,PATCH",
		AllowCredentials: true,
	}))
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	routes.SetupRoutes(app, routes.Dependencies{
		DB:       db,
		Redis:    rdb,
		Gate:     gate,
		Orders:   orders,
		Bans:     bans,
		Abuse:    abuseLog,
		Metrics:  m,
		Gatherer: prometheus.DefaultGatherer,
		Security: cfg.Security,
		Secure:   cfg.Env == "production",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sweeper.Start(gctx) })
	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error {
		appLogger.Info("server starting", "port", cfg.Port, "env", cfg.Env)
		return app.Listen(":" + cfg.Port)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		appLogger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	appLogger.Info("server stopped")
}

// banBackends picks the ban list store and the offense counter. Redis, when
// enabled, keeps offense counts shared across instances.
func banBackends(cfg *config.Config, db *gorm.DB, rdb redis.UniversalClient) (ban.Store, ban.OffenderCounter, error) {
	var offenders ban.OffenderCounter = ban.NewMemoryOffenders()
	if rdb != nil {
		offenders = ban.NewRedisOffenders(rdb, cfg.Security.BanOffenseTTL)
	}

	switch cfg.Security.BanStore {
	case "db":
		return ban.NewDBStore(db), offenders, nil
	case "file", "":
		store, err := ban.NewFileStore(cfg.Security.BanFile)
		if err != nil {
			return nil, nil, err
		}
		return store, offenders, nil
	default:
		return nil, nil, fmt.Errorf("unknown BAN_STORE %q", cfg.Security.BanStore)
	}
}
