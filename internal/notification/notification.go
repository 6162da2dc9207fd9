package notification

import (
	"context"
	"fmt"
	"log/slog"
)

const (
	// KindRegistrationOTP carries the first code of a registration.
	KindRegistrationOTP = "registration_otp"
	// KindResendOTP carries a replacement registration code.
	KindResendOTP = "resend_otp"
	// KindPasswordResetOTP carries a password reset code.
	KindPasswordResetOTP = "password_reset_otp"
)

// Message describes a notification payload.
type Message struct {
	Kind        string `json:"kind"`
	Destination string `json:"destination"`
	Body        string `json:"body"`
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// RegistrationOTP builds the SMS sent when a registration starts.
func RegistrationOTP(phone, code string) Message {
	return Message{Kind: KindRegistrationOTP, Destination: phone, Body: fmt.Sprintf("Your OTP for Logistics MS is: %s", code)}
}

// ResendOTP builds the SMS sent when a registration code is re-issued.
func ResendOTP(phone, code string) Message {
	return Message{Kind: KindResendOTP, Destination: phone, Body: fmt.Sprintf("Your new OTP for Logistics MS is: %s", code)}
}

// PasswordResetOTP builds the SMS sent for a forgotten password.
func PasswordResetOTP(phone, code string) Message {
	return Message{Kind: KindPasswordResetOTP, Destination: phone, Body: fmt.Sprintf("Your password reset OTP for Logistics MS is: %s", code)}
}

// LoggerNotifier writes notifications to the logger instead of delivering them.
// It is the development provider.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(ctx context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.InfoContext(ctx, "notification", "kind", message.Kind, "destination", message.Destination, "body", message.Body)
	return nil
}
