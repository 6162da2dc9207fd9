package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/haulr/haulr/internal/apperr"
	"github.com/haulr/haulr/internal/identity"
	"github.com/haulr/haulr/internal/notification"
	"github.com/haulr/haulr/internal/otp"
	"github.com/haulr/haulr/internal/validation"
)

const (
	msgRegisterFields = "All fields (name, phone, password, role) are required"
	msgInvalidPhone   = "Please enter a valid phone number"
	msgInvalidRole    = "Role must be one of: customer, driver, admin"
	msgExpiredOTP     = "Invalid or expired OTP"
	msgWrongOTP       = "Invalid OTP"
	msgDeliveryFailed = "could not deliver OTP"
	msgUnavailable    = "Service temporarily unavailable"
	msgNoUser         = "No user found with this phone number"
)

// RegisterInput is the body of a registration request.
type RegisterInput struct {
	Name        string `json:"name" validate:"required"`
	Phone       string `json:"phone" validate:"required,min=10"`
	Password    string `json:"password" validate:"required"`
	Role        string `json:"role" validate:"required,oneof=customer driver admin"`
	CompanyName string `json:"companyName"`
	TenantID    string `json:"tenantId"`
}

// VerifyInput is the body of an OTP verification request.
type VerifyInput struct {
	Phone string `json:"phone" validate:"required"`
	OTP   string `json:"otp" validate:"required"`
}

// LoginInput is the body of a login request.
type LoginInput struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// ResetInput is the body of a password reset request.
type ResetInput struct {
	Phone       string `json:"phone" validate:"required"`
	OTP         string `json:"otp" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

// LoginResult carries the issued pair and the role shown to the client.
type LoginResult struct {
	TokenPair
	Role identity.Role
}

// pendingRegistration is what waits in the OTP store between register and
// verify. Password holds the bcrypt hash, never the plaintext.
type pendingRegistration struct {
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	Password    string `json:"password"`
	Role        string `json:"role"`
	CompanyName string `json:"companyName,omitempty"`
	TenantID    string `json:"tenantId,omitempty"`
}

// Service runs the registration, login, refresh and password reset flows.
type Service struct {
	ids      *identity.Service
	tokens   *TokenService
	otps     *otp.Engine
	notifier notification.Notifier
	validate *validation.Validator
	logger   *slog.Logger
}

// NewService wires the flows to their collaborators.
func NewService(ids *identity.Service, tokens *TokenService, otps *otp.Engine, notifier notification.Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		ids:      ids,
		tokens:   tokens,
		otps:     otps,
		notifier: notifier,
		validate: validation.New(),
		logger:   logger,
	}
}

// Tokens exposes the token service for the bearer middleware.
func (s *Service) Tokens() *TokenService {
	return s.tokens
}

// Register hashes the password, parks the registration behind a fresh OTP and
// texts the code. A failed send leaves the pending entry in place.
func (s *Service) Register(ctx context.Context, in RegisterInput) error {
	if err := s.validate.Struct(in, msgRegisterFields); err != nil {
		return registerValidationError(err)
	}
	if err := checkPhone(in.Phone); err != nil {
		return err
	}

	hash, err := s.ids.HashPassword(in.Password)
	if err != nil {
		return apperr.Internal(err)
	}

	code, err := s.otps.Issue(ctx, in.Phone, pendingRegistration{
		Name:        in.Name,
		Phone:       in.Phone,
		Password:    string(hash),
		Role:        in.Role,
		CompanyName: in.CompanyName,
		TenantID:    in.TenantID,
	})
	if err != nil {
		return s.storeError(err, "Registration service temporarily unavailable")
	}

	return s.deliver(ctx, notification.RegistrationOTP(in.Phone, code))
}

// VerifyRegistration checks the code and creates the user. The pending entry
// is only removed once the user row exists.
func (s *Service) VerifyRegistration(ctx context.Context, in VerifyInput) (identity.User, error) {
	if err := s.validate.Struct(in, "Phone and OTP are required"); err != nil {
		return identity.User{}, err
	}
	if err := checkPhone(in.Phone); err != nil {
		return identity.User{}, err
	}

	var pending pendingRegistration
	if err := s.otps.Verify(ctx, in.Phone, in.OTP, &pending); err != nil {
		switch {
		case errors.Is(err, otp.ErrNotFound):
			return identity.User{}, apperr.Validation(msgExpiredOTP)
		case errors.Is(err, otp.ErrMismatch):
			return identity.User{}, apperr.Validation(msgWrongOTP)
		default:
			return identity.User{}, s.storeError(err, "Verification service temporarily unavailable")
		}
	}

	user, err := s.ids.Create(ctx, identity.NewUser{
		Name:         pending.Name,
		Phone:        pending.Phone,
		PasswordHash: []byte(pending.Password),
		Role:         identity.Role(pending.Role),
		CompanyName:  pending.CompanyName,
		TenantID:     pending.TenantID,
	})
	if err != nil {
		return identity.User{}, createError(err)
	}

	if err := s.otps.Discard(ctx, in.Phone); err != nil {
		s.logger.WarnContext(ctx, "discard pending registration", "phone", in.Phone, "error", err)
	}
	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID, "tenant_id", user.TenantID, "role", user.Role)
	return user, nil
}

// ResendOTP replaces the code of a pending registration and texts it again.
func (s *Service) ResendOTP(ctx context.Context, phone string) error {
	if phone == "" {
		return apperr.Validation("Phone number is required")
	}
	if err := checkPhone(phone); err != nil {
		return err
	}
	code, err := s.otps.Resend(ctx, phone)
	if errors.Is(err, otp.ErrNotFound) {
		return apperr.NotFound("No pending registration found")
	}
	if err != nil {
		return s.storeError(err, msgUnavailable)
	}
	return s.deliver(ctx, notification.ResendOTP(phone, code))
}

// Login checks credentials and issues a token pair, replacing any earlier
// refresh token for the user.
func (s *Service) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	user, err := s.ids.Authenticate(ctx, in.Phone, in.Password)
	if errors.Is(err, identity.ErrInvalidCredentials) {
		return LoginResult{}, apperr.Unauthenticated("Invalid credentials")
	}
	if err != nil {
		return LoginResult{}, apperr.Internal(err)
	}

	pair, err := s.tokens.IssuePair(ctx, user)
	if err != nil {
		return LoginResult{}, apperr.Internal(err)
	}
	s.logger.InfoContext(ctx, "user logged in", "user_id", user.ID)
	return LoginResult{TokenPair: pair, Role: user.Role}, nil
}

// Refresh mints a new access token from the presented refresh token.
func (s *Service) Refresh(ctx context.Context, presented string) (string, error) {
	access, err := s.tokens.Refresh(ctx, presented)
	switch {
	case err == nil:
		return access, nil
	case errors.Is(err, ErrNoToken):
		return "", apperr.Unauthenticated("Refresh token required")
	case errors.Is(err, ErrRevoked):
		return "", apperr.Forbidden("Invalid refresh token")
	default:
		return "", apperr.Internal(err)
	}
}

// Logout revokes the stored refresh token of userID.
func (s *Service) Logout(ctx context.Context, userID string) error {
	err := s.tokens.Revoke(ctx, userID)
	if errors.Is(err, identity.ErrNotFound) {
		return apperr.NotFound("User not found")
	}
	if err != nil {
		return apperr.Internal(err)
	}
	s.logger.InfoContext(ctx, "user logged out", "user_id", userID)
	return nil
}

// Profile returns the user behind an access token.
func (s *Service) Profile(ctx context.Context, userID string) (identity.User, error) {
	user, err := s.ids.Users().FindByID(ctx, userID)
	if errors.Is(err, identity.ErrNotFound) {
		return identity.User{}, apperr.NotFound("User not found")
	}
	if err != nil {
		return identity.User{}, apperr.Internal(err)
	}
	return user, nil
}

// ForgotPassword texts a reset code to a registered phone. Unknown phones are
// reported as not found.
func (s *Service) ForgotPassword(ctx context.Context, phone string) error {
	if phone == "" {
		return apperr.Validation("Phone number is required")
	}
	if err := checkPhone(phone); err != nil {
		return err
	}
	_, err := s.ids.Users().FindByPhone(ctx, phone)
	if errors.Is(err, identity.ErrNotFound) {
		return apperr.NotFound(msgNoUser)
	}
	if err != nil {
		return apperr.Internal(err)
	}

	code, err := s.otps.IssueReset(ctx, phone)
	if err != nil {
		return s.storeError(err, msgUnavailable)
	}
	return s.deliver(ctx, notification.PasswordResetOTP(phone, code))
}

// ResetPassword checks the reset code and stores the new password hash. The
// code is discarded only after the password update succeeds.
func (s *Service) ResetPassword(ctx context.Context, in ResetInput) error {
	if err := s.validate.Struct(in, "All fields are required"); err != nil {
		return err
	}
	if err := checkPhone(in.Phone); err != nil {
		return err
	}

	if err := s.otps.VerifyReset(ctx, in.Phone, in.OTP); err != nil {
		if errors.Is(err, otp.ErrNotFound) || errors.Is(err, otp.ErrMismatch) {
			return apperr.Validation(msgExpiredOTP)
		}
		return s.storeError(err, msgUnavailable)
	}

	err := s.ids.SetPassword(ctx, in.Phone, in.NewPassword)
	if errors.Is(err, identity.ErrNotFound) {
		return apperr.NotFound(msgNoUser)
	}
	if err != nil {
		return apperr.Internal(err)
	}

	if err := s.otps.DiscardReset(ctx, in.Phone); err != nil {
		s.logger.WarnContext(ctx, "discard reset code", "phone", in.Phone, "error", err)
	}
	s.logger.InfoContext(ctx, "password reset", "phone", in.Phone)
	return nil
}

func (s *Service) deliver(ctx context.Context, msg notification.Message) error {
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "send otp", "kind", msg.Kind, "phone", msg.Destination, "error", err)
		return apperr.Unavailable(msgDeliveryFailed, err)
	}
	s.logger.InfoContext(ctx, "otp sent", "kind", msg.Kind, "phone", msg.Destination)
	return nil
}

// checkPhone rejects anything but digits and a leading plus before the phone
// reaches a store key. Full E.164 is enforced when the user is written.
func checkPhone(phone string) error {
	if !identity.WellFormedPhone(phone) {
		return apperr.Validation(msgInvalidPhone)
	}
	return nil
}

func (s *Service) storeError(err error, message string) error {
	if errors.Is(err, otp.ErrUnavailable) {
		return apperr.Unavailable(message, err)
	}
	return apperr.Internal(err)
}

// registerValidationError picks the message for the first class of problem
// found: missing fields, then a short phone, then an unknown role.
func registerValidationError(err error) error {
	appErr := apperr.From(err)
	for _, field := range validation.Fields(err) {
		if appErr.Details[field] == validation.RequiredMessage {
			return appErr
		}
	}
	switch {
	case appErr.Details["phone"] != "":
		appErr.Message = msgInvalidPhone
	case appErr.Details["role"] != "":
		appErr.Message = msgInvalidRole
	}
	return appErr
}

func createError(err error) error {
	switch {
	case errors.Is(err, identity.ErrTenantRequired):
		return apperr.Validation("Company Name or Tenant ID is required")
	case errors.Is(err, identity.ErrUnknownTenant):
		return apperr.Validation("Tenant not found")
	case errors.Is(err, identity.ErrInvalidPhone):
		return apperr.Validation("Phone number must be in E.164 format")
	case errors.Is(err, identity.ErrInvalidRole):
		return apperr.Validation(msgInvalidRole)
	case errors.Is(err, identity.ErrPhoneTaken):
		return apperr.Conflict("Phone number already registered")
	default:
		return apperr.Internal(err)
	}
}
