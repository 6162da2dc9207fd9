package auth

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/haulr/haulr/internal/apperr"
)

// Keys under which the bearer middleware stores verified claims.
const (
	LocalUserID   = "user_id"
	LocalRole     = "role"
	LocalTenantID = "tenant_id"
)

// RefreshCookie is the name of the http-only cookie carrying the refresh token.
const RefreshCookie = "refreshToken"

// Handler exposes the auth flows over HTTP.
type Handler struct {
	svc          *Service
	secureCookie bool
}

// NewHandler builds a Handler. secureCookie marks the refresh cookie Secure.
func NewHandler(svc *Service, secureCookie bool) *Handler {
	return &Handler{svc: svc, secureCookie: secureCookie}
}

type phoneRequest struct {
	Phone string `json:"phone"`
}

type profileResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Role      string    `json:"role"`
	TenantID  string    `json:"tenantId"`
	CreatedAt time.Time `json:"createdAt"`
}

func parse(c *fiber.Ctx, into any) error {
	if err := c.BodyParser(into); err != nil {
		return apperr.Validation("Invalid request body")
	}
	return nil
}

func message(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"message": msg})
}

// Register starts a registration and texts an OTP.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req RegisterInput
	if err := parse(c, &req); err != nil {
		return err
	}
	if err := h.svc.Register(c.UserContext(), req); err != nil {
		return err
	}
	return message(c, http.StatusOK, "OTP sent to your phone")
}

// VerifyOTP completes a registration.
func (h *Handler) VerifyOTP(c *fiber.Ctx) error {
	var req VerifyInput
	if err := parse(c, &req); err != nil {
		return err
	}
	if _, err := h.svc.VerifyRegistration(c.UserContext(), req); err != nil {
		return err
	}
	return message(c, http.StatusCreated, "User registered successfully")
}

// ResendOTP re-issues the registration code.
func (h *Handler) ResendOTP(c *fiber.Ctx) error {
	var req phoneRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	if err := h.svc.ResendOTP(c.UserContext(), req.Phone); err != nil {
		return err
	}
	return message(c, http.StatusOK, "New OTP sent")
}

// Login returns the access token in the body and sets the refresh token cookie.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req LoginInput
	if err := parse(c, &req); err != nil {
		return err
	}
	res, err := h.svc.Login(c.UserContext(), req)
	if err != nil {
		return err
	}
	c.Cookie(&fiber.Cookie{
		Name:     RefreshCookie,
		Value:    res.RefreshToken,
		Path:     "/",
		Expires:  time.Now().Add(h.svc.Tokens().RefreshTTL()),
		HTTPOnly: true,
		Secure:   h.secureCookie,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
	return c.Status(http.StatusOK).JSON(fiber.Map{"accessToken": res.AccessToken, "role": res.Role})
}

// Refresh exchanges the refresh cookie for a new access token.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	access, err := h.svc.Refresh(c.UserContext(), c.Cookies(RefreshCookie))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"accessToken": access})
}

// Logout revokes the caller's refresh token and clears the cookie.
func (h *Handler) Logout(c *fiber.Ctx) error {
	userID, _ := c.Locals(LocalUserID).(string)
	if userID == "" {
		return apperr.Unauthenticated("Not authenticated")
	}
	if err := h.svc.Logout(c.UserContext(), userID); err != nil {
		return err
	}
	c.ClearCookie(RefreshCookie)
	return message(c, http.StatusOK, "Logged out")
}

// Me returns the profile of the authenticated user.
func (h *Handler) Me(c *fiber.Ctx) error {
	userID, _ := c.Locals(LocalUserID).(string)
	if userID == "" {
		return apperr.Unauthenticated("Not authenticated")
	}
	user, err := h.svc.Profile(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(profileResponse{
		ID:        user.ID,
		Name:      user.Name,
		Phone:     user.Phone,
		Role:      string(user.Role),
		TenantID:  user.TenantID,
		CreatedAt: user.CreatedAt,
	})
}

// ForgotPassword texts a reset code.
func (h *Handler) ForgotPassword(c *fiber.Ctx) error {
	var req phoneRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	if err := h.svc.ForgotPassword(c.UserContext(), req.Phone); err != nil {
		return err
	}
	return message(c, http.StatusOK, "Reset OTP sent to your phone")
}

// ResetPassword sets a new password after checking the reset code.
func (h *Handler) ResetPassword(c *fiber.Ctx) error {
	var req ResetInput
	if err := parse(c, &req); err != nil {
		return err
	}
	if err := h.svc.ResetPassword(c.UserContext(), req); err != nil {
		return err
	}
	return message(c, http.StatusOK, "Password reset successfully")
}
