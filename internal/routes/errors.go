package routes

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/haulr/haulr/internal/apperr"
	"github.com/haulr/haulr/internal/config"
)

// ErrorHandler renders every error as {"status","message"}. Client errors use
// status "fail", server errors "error". Causes are logged, and echoed as
// "detail" only outside production.
func ErrorHandler(cfg config.Config, logger *slog.Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *fiber.Ctx, err error) error {
		var appErr *apperr.Error
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			appErr = apperr.New(fiberErr.Code, fiberErr.Message)
		} else {
			appErr = apperr.From(err)
		}

		body := fiber.Map{"status": "fail", "message": appErr.Message}
		if !appErr.Expose() {
			body["status"] = "error"
			logger.ErrorContext(c.UserContext(), "request failed",
				"method", c.Method(), "path", c.Path(), "status", appErr.Status, "error", err)
		}
		if len(appErr.Details) > 0 {
			body["errors"] = appErr.Details
		}
		if !cfg.IsProduction() && appErr.Err != nil {
			body["detail"] = appErr.Err.Error()
		}
		return c.Status(appErr.Status).JSON(body)
	}
}
