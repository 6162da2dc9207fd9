package routes

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/haulr/haulr/internal/apperr"
	"github.com/haulr/haulr/internal/auth"
	"github.com/haulr/haulr/internal/config"
	"github.com/haulr/haulr/internal/identity"
	"github.com/haulr/haulr/internal/middleware"
	"github.com/haulr/haulr/internal/notification"
	"github.com/haulr/haulr/internal/otp"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
	// Notifier delivers OTPs. Nil falls back to logging them.
	Notifier notification.Notifier
	// RedisGate short-circuits OTP calls while Redis is known to be down.
	RedisGate otp.Gate
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	if d.Cfg.IsDev() {
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}
	app.Use(middleware.Audit(d.Logger))
	if d.Cfg.CORSOrigins != "" {
		app.Use(cors.New(corsConfig(d.Cfg.CORSOrigins)))
	}

	var (
		users   identity.Repository
		tenants identity.TenantRepository
		store   otp.Store
	)
	if d.DB != nil {
		users = identity.NewPostgresRepository(d.DB)
		tenants = identity.NewPostgresTenantRepository(d.DB)
	} else {
		users = identity.NewMemoryRepository()
		tenants = identity.NewMemoryTenantRepository()
	}
	if d.Cache != nil {
		store = otp.NewRedisStore(d.Cache, d.RedisGate)
	} else {
		store = otp.NewMemoryStore()
	}
	notifier := d.Notifier
	if notifier == nil {
		notifier = notification.NewLoggerNotifier(d.Logger)
	}

	tokens := auth.NewTokenService(users, auth.TokenConfig{
		AccessSecret:  d.Cfg.AccessTokenSecret,
		RefreshSecret: d.Cfg.RefreshTokenSecret,
		AccessTTL:     d.Cfg.AccessTokenTTL,
		RefreshTTL:    d.Cfg.RefreshTokenTTL,
	})
	authSvc := auth.NewService(
		identity.NewService(users, tenants),
		tokens,
		otp.NewEngine(store, otp.WithTTL(d.Cfg.OTPTTL)),
		notifier,
		d.Logger,
	)
	authHandler := auth.NewHandler(authSvc, d.Cfg.CookieSecure)

	api := app.Group("/api")
	RegisterHealthRoutes(api, d)

	limit := func(scope string) fiber.Handler {
		return middleware.RateLimit(d.Cache, scope, d.Cfg.RateLimitPerMinute)
	}
	RegisterAuthRoutes(api, authHandler, middleware.Bearer(tokens), limit)

	app.Use(func(c *fiber.Ctx) error {
		return apperr.NotFound("Not Found - " + c.OriginalURL())
	})
	return nil
}

// corsConfig allows credentialed requests from origins. "*" reflects the
// caller's origin, since a literal wildcard cannot carry credentials.
func corsConfig(origins string) cors.Config {
	if origins == "*" {
		return cors.Config{
			AllowOriginsFunc: func(string) bool { return true },
			AllowCredentials: true,
		}
	}
	return cors.Config{AllowOrigins: origins, AllowCredentials: true}
}
