package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/haulr/haulr/internal/apperr"
	"github.com/haulr/haulr/internal/auth"
)

// AccessVerifier checks an access token and returns its claims.
type AccessVerifier interface {
	VerifyAccessToken(token string) (*auth.Claims, error)
}

// Bearer rejects requests without a valid access token and stores the
// verified claims in Locals for handlers.
func Bearer(verifier AccessVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if len(authz) < len("Bearer ") || !strings.EqualFold(authz[:len("Bearer ")], "bearer ") {
			return apperr.Unauthenticated("Missing bearer token")
		}
		token := strings.TrimSpace(authz[len("Bearer "):])
		claims, err := verifier.VerifyAccessToken(token)
		if err != nil {
			return apperr.Unauthenticated("Invalid or expired token")
		}

		c.Locals(auth.LocalUserID, claims.UserID)
		c.Locals(auth.LocalRole, claims.Role)
		c.Locals(auth.LocalTenantID, claims.TenantID)
		return c.Next()
	}
}
