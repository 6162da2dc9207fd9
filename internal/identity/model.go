package identity

import (
	"errors"
	"regexp"
	"time"
)

// Role is the marketplace role a user registered as. It never changes after creation.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleDriver   Role = "driver"
	RoleAdmin    Role = "admin"
)

var (
	ErrNotFound     = errors.New("identity: not found")
	ErrPhoneTaken   = errors.New("identity: phone number already registered")
	ErrInvalidPhone = errors.New("identity: phone number is not in E.164 format")
	ErrInvalidRole  = errors.New("identity: unknown role")
)

var (
	e164       = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)
	phoneChars = regexp.MustCompile(`^\+?[0-9]{1,20}$`)
)

// ParseRole converts s into a Role.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleCustomer, RoleDriver, RoleAdmin:
		return r, nil
	default:
		return "", ErrInvalidRole
	}
}

// ValidatePhone checks the E.164 shape enforced at write time.
func ValidatePhone(phone string) error {
	if !e164.MatchString(phone) {
		return ErrInvalidPhone
	}
	return nil
}

// WellFormedPhone reports whether phone is digits with an optional leading
// plus. It is looser than ValidatePhone and makes phone safe to embed in a
// storage key.
func WellFormedPhone(phone string) bool {
	return phoneChars.MatchString(phone)
}

// Tenant is the organisation a user belongs to.
type Tenant struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// User is a registered marketplace account.
type User struct {
	ID           string
	TenantID     string
	Name         string
	Phone        string
	PasswordHash []byte
	Role         Role
	// RefreshToken is the only refresh token currently accepted for this user.
	RefreshToken string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u User) validate() error {
	if err := ValidatePhone(u.Phone); err != nil {
		return err
	}
	if _, err := ParseRole(string(u.Role)); err != nil {
		return err
	}
	return nil
}
