package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/haulr/haulr/internal/apperr"
	"github.com/haulr/haulr/internal/auth"
	"github.com/haulr/haulr/internal/identity"
)

func newApp() *fiber.App {
	return fiber.New(fiber.Config{ErrorHandler: func(c *fiber.Ctx, err error) error {
		return c.Status(statusFor(err)).SendString(err.Error())
	}})
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		cache.Close()
		mr.Close()
	})
	return mr, cache
}

func postPhone(t *testing.T, app *fiber.App, phone string) int {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/login", strings.NewReader(`{"phone":"`+phone+`"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func TestRateLimitPerPhone(t *testing.T) {
	mr, cache := setupRedis(t)
	app := newApp()
	app.Post("/login", RateLimit(cache, "login", 2), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	for i := 0; i < 2; i++ {
		if got := postPhone(t, app, "+15551234567"); got != fiber.StatusOK {
			t.Fatalf("request %d: expected 200 got %d", i, got)
		}
	}
	if got := postPhone(t, app, "+15551234567"); got != fiber.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", got)
	}
	if got := postPhone(t, app, "+15557654321"); got != fiber.StatusOK {
		t.Fatalf("other phone: expected 200 got %d", got)
	}
	if ttl := mr.TTL("rl:login:+15551234567"); ttl != time.Minute {
		t.Fatalf("expected 1m window, got %s", ttl)
	}

	mr.FastForward(time.Minute)
	if got := postPhone(t, app, "+15551234567"); got != fiber.StatusOK {
		t.Fatalf("after window: expected 200 got %d", got)
	}
}

func TestRateLimitFailsOpen(t *testing.T) {
	app := newApp()
	app.Post("/login", RateLimit(nil, "login", 1), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	for i := 0; i < 3; i++ {
		if got := postPhone(t, app, "+15551234567"); got != fiber.StatusOK {
			t.Fatalf("expected 200 got %d", got)
		}
	}

	mr, cache := setupRedis(t)
	app = newApp()
	app.Post("/login", RateLimit(cache, "login", 1), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	mr.SetError("LOADING")
	for i := 0; i < 3; i++ {
		if got := postPhone(t, app, "+15551234567"); got != fiber.StatusOK {
			t.Fatalf("redis error: expected 200 got %d", got)
		}
	}
}

func TestRateLimitKeysMalformedPhoneByIP(t *testing.T) {
	mr, cache := setupRedis(t)
	app := newApp()
	app.Post("/login", RateLimit(cache, "login", 1), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	if got := postPhone(t, app, "rl:login:+15551234567"); got != fiber.StatusOK {
		t.Fatalf("expected 200 got %d", got)
	}
	if mr.Exists("rl:login:rl:login:+15551234567") {
		t.Fatalf("malformed phone became part of a counter key")
	}
	if got := postPhone(t, app, "not a phone"); got != fiber.StatusTooManyRequests {
		t.Fatalf("same client ip: expected 429 got %d", got)
	}
	if got := postPhone(t, app, "+15551234567"); got != fiber.StatusOK {
		t.Fatalf("well-formed phone: expected 200 got %d", got)
	}
}

func TestBearer(t *testing.T) {
	tokens := auth.NewTokenService(identity.NewMemoryRepository(), auth.TokenConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
	})
	app := newApp()
	app.Get("/me", Bearer(tokens), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"id":       c.Locals(auth.LocalUserID),
			"role":     c.Locals(auth.LocalRole),
			"tenantId": c.Locals(auth.LocalTenantID),
		})
	})

	access, err := tokens.MintAccessToken(auth.Claims{UserID: "u1", Role: "driver", TenantID: "t1"})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	refresh, err := tokens.MintRefreshToken(auth.Claims{UserID: "u1", Role: "driver", TenantID: "t1"})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", fiber.StatusUnauthorized},
		{"wrong scheme", "Basic abc", fiber.StatusUnauthorized},
		{"garbage", "Bearer not-a-jwt", fiber.StatusUnauthorized},
		{"refresh token", "Bearer " + refresh, fiber.StatusUnauthorized},
		{"valid", "Bearer " + access, fiber.StatusOK},
		{"lowercase scheme", "bearer " + access, fiber.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tc.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tc.status {
				t.Fatalf("expected %d got %d", tc.status, resp.StatusCode)
			}
			if tc.status != fiber.StatusOK {
				return
			}
			var body map[string]string
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["id"] != "u1" || body["role"] != "driver" || body["tenantId"] != "t1" {
				t.Fatalf("unexpected locals: %v", body)
			}
		})
	}
}

func TestRequestIDAndAudit(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	app := newApp()
	app.Use(RequestID(), Audit(logger))
	app.Get("/ok", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/missing", func(c *fiber.Ctx) error { return apperr.NotFound("nope") })

	req := httptest.NewRequest(fiber.MethodGet, "/ok", nil)
	req.Header.Set(requestIDHeader, "req-1")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if got := resp.Header.Get(requestIDHeader); got != "req-1" {
		t.Fatalf("expected echoed request id, got %q", got)
	}
	resp.Body.Close()

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/missing", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.Header.Get(requestIDHeader) == "" {
		t.Fatalf("expected generated request id")
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 audit lines, got %d: %s", len(lines), buf.String())
	}
	var first, second map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if first["request_id"] != "req-1" || first["status"] != float64(200) {
		t.Fatalf("unexpected first line: %v", first)
	}
	if second["status"] != float64(404) || second["level"] != "WARN" {
		t.Fatalf("unexpected second line: %v", second)
	}
}
