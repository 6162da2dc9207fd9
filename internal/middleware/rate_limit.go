package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/haulr/haulr/internal/apperr"
	"github.com/haulr/haulr/internal/identity"
)

// RateLimit caps requests per phone (or client IP when no well-formed phone is
// sent) per minute for one scope, counting in Redis. It fails open: without Redis, or on
// any Redis error, requests pass through.
func RateLimit(cache *redis.Client, scope string, maxPerMin int) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 5
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}
		var req struct {
			Phone string `json:"phone"`
		}
		_ = c.BodyParser(&req)
		subject := strings.TrimSpace(req.Phone)
		if !identity.WellFormedPhone(subject) {
			subject = c.IP()
		}

		key := "rl:" + scope + ":" + subject
		cnt, err := cache.Incr(c.UserContext(), key).Result()
		if err != nil {
			return c.Next()
		}
		if cnt == 1 {
			cache.Expire(c.UserContext(), key, time.Minute)
		}
		if cnt > int64(maxPerMin) {
			return apperr.New(http.StatusTooManyRequests, "Too many requests, try again later")
		}
		return c.Next()
	}
}
