package routes

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

const (
	statusUp     = "ok"
	statusMemory = "memory"
	statusDown   = "down"
)

// RegisterHealthRoutes adds a readiness endpoint reporting each backing store.
// Stores running in memory count as healthy. Ping errors are logged, never
// returned to the caller.
func RegisterHealthRoutes(r fiber.Router, d Deps) {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r.Get("/health", func(c *fiber.Ctx) error {
		dbStatus := statusMemory
		redisStatus := statusMemory

		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if d.DB != nil {
			dbStatus = statusUp
			if err := d.DB.Ping(ctx); err != nil {
				dbStatus = statusDown
				logger.WarnContext(ctx, "health check failed", "store", "postgres", "error", err)
			}
		}
		if d.Cache != nil {
			redisStatus = statusUp
			if err := d.Cache.Ping(ctx).Err(); err != nil {
				redisStatus = statusDown
				logger.WarnContext(ctx, "health check failed", "store", "redis", "error", err)
			}
		}

		status, overall := http.StatusOK, "ok"
		if !healthy(dbStatus) || !healthy(redisStatus) {
			status, overall = http.StatusServiceUnavailable, "degraded"
		}
		return c.Status(status).JSON(fiber.Map{
			"status":    overall,
			"postgres":  dbStatus,
			"redis":     redisStatus,
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
}

func healthy(s string) bool {
	return s != statusDown
}
