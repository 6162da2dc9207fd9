package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/haulr/haulr/internal/identity"
)

var (
	// ErrNoToken means no refresh token was presented.
	ErrNoToken = errors.New("auth: no refresh token")
	// ErrRevoked means the presented refresh token is not the one on record or no longer verifies.
	ErrRevoked = errors.New("auth: refresh token revoked or invalid")
	// ErrInvalidToken means an access token failed verification.
	ErrInvalidToken = errors.New("auth: invalid access token")
)

// Claims is the payload carried by both access and refresh tokens.
type Claims struct {
	UserID   string `json:"id"`
	Role     string `json:"role"`
	TenantID string `json:"tenantId"`
	jwt.RegisteredClaims
}

// ClaimsFor builds the claim set for user.
func ClaimsFor(user identity.User) Claims {
	return Claims{UserID: user.ID, Role: string(user.Role), TenantID: user.TenantID}
}

// TokenConfig carries secrets and lifetimes. The two secrets must differ.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// TokenPair is the result of a successful login.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// TokenService mints and checks HS256 tokens and owns the stored refresh token.
type TokenService struct {
	users         identity.Repository
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewTokenService builds a TokenService. Zero TTLs fall back to 15 minutes and 7 days.
func NewTokenService(users identity.Repository, cfg TokenConfig) *TokenService {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	return &TokenService{
		users:         users,
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		now:           time.Now,
	}
}

// RefreshTTL reports how long a refresh token lives, for cookie expiry.
func (s *TokenService) RefreshTTL() time.Duration {
	return s.refreshTTL
}

// MintAccessToken signs claims with the access secret.
func (s *TokenService) MintAccessToken(claims Claims) (string, error) {
	return s.mint(claims, s.accessSecret, s.accessTTL)
}

// MintRefreshToken signs claims with the refresh secret.
func (s *TokenService) MintRefreshToken(claims Claims) (string, error) {
	return s.mint(claims, s.refreshSecret, s.refreshTTL)
}

func (s *TokenService) mint(claims Claims, secret []byte, ttl time.Duration) (string, error) {
	now := s.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   claims.UserID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// IssuePair mints both tokens and stores the refresh token on the user,
// replacing whatever was there before.
func (s *TokenService) IssuePair(ctx context.Context, user identity.User) (TokenPair, error) {
	claims := ClaimsFor(user)
	access, err := s.MintAccessToken(claims)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.MintRefreshToken(claims)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.users.UpdateRefreshToken(ctx, user.ID, refresh); err != nil {
		return TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Refresh exchanges the presented refresh token for a new access token. The
// token must equal the one stored on a user and still verify under the
// refresh secret. The refresh token itself is not rotated.
func (s *TokenService) Refresh(ctx context.Context, presented string) (string, error) {
	if presented == "" {
		return "", ErrNoToken
	}
	user, err := s.users.FindByRefreshToken(ctx, presented)
	if errors.Is(err, identity.ErrNotFound) {
		return "", ErrRevoked
	}
	if err != nil {
		return "", err
	}
	if _, err := s.parse(presented, s.refreshSecret); err != nil {
		return "", ErrRevoked
	}
	return s.MintAccessToken(ClaimsFor(user))
}

// Revoke clears the stored refresh token for userID.
func (s *TokenService) Revoke(ctx context.Context, userID string) error {
	return s.users.UpdateRefreshToken(ctx, userID, "")
}

// VerifyAccessToken checks signature, algorithm and expiry of an access token.
func (s *TokenService) VerifyAccessToken(token string) (*Claims, error) {
	claims, err := s.parse(token, s.accessSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

func (s *TokenService) parse(token string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("token is not valid")
	}
	return claims, nil
}
