package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/haulr/haulr/internal/auth"
)

// RegisterAuthRoutes wires authentication endpoints. limit builds a rate
// limiter for the named scope; bearer guards the routes that need a session.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, bearer fiber.Handler, limit func(scope string) fiber.Handler) {
	group := r.Group("/auth")
	group.Post("/register", limit("register"), h.Register)
	group.Post("/verify-otp", limit("verify"), h.VerifyOTP)
	group.Post("/resend-otp", limit("resend"), h.ResendOTP)
	group.Post("/login", limit("login"), h.Login)
	group.Post("/refresh", h.Refresh)
	group.Post("/forgot-password", limit("forgot"), h.ForgotPassword)
	group.Post("/reset-password", limit("reset"), h.ResetPassword)

	group.Post("/logout", bearer, h.Logout)
	group.Get("/me", bearer, h.Me)
}
