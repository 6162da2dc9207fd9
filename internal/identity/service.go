package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("identity: invalid credentials")
	ErrTenantRequired     = errors.New("identity: company name or tenant id is required")
	ErrUnknownTenant      = errors.New("identity: tenant does not exist")
)

// NewUser is a verified registration ready to be persisted. PasswordHash is
// already hashed; the plaintext never reaches this package after registration.
type NewUser struct {
	Name         string
	Phone        string
	PasswordHash []byte
	Role         Role
	CompanyName  string
	TenantID     string
}

// Service manages identity lifecycle.
type Service struct {
	repo    Repository
	tenants TenantRepository
	cost    int
	now     func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithBcryptCost overrides the bcrypt work factor. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

// NewService creates a new identity service.
func NewService(repo Repository, tenants TenantRepository, opts ...Option) *Service {
	s := &Service{repo: repo, tenants: tenants, cost: bcrypt.DefaultCost, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Users exposes the underlying user repository.
func (s *Service) Users() Repository {
	return s.repo
}

// HashPassword returns a salted bcrypt hash of password.
func (s *Service) HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), s.cost)
}

// Create resolves the tenant for nu and persists the user. A tenant id wins
// over a company name; a company name creates a new tenant. A new tenant is
// only kept if its user is stored too.
func (s *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	if err := ValidatePhone(nu.Phone); err != nil {
		return User{}, err
	}
	role, err := ParseRole(string(nu.Role))
	if err != nil {
		return User{}, err
	}
	_, err = s.repo.FindByPhone(ctx, nu.Phone)
	if err == nil {
		return User{}, ErrPhoneTaken
	}
	if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}

	tenant, isNew, err := s.resolveTenant(ctx, nu)
	if err != nil {
		return User{}, err
	}

	now := s.now().UTC()
	user := User{
		ID:           uuid.NewString(),
		TenantID:     tenant.ID,
		Name:         nu.Name,
		Phone:        nu.Phone,
		PasswordHash: nu.PasswordHash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store(ctx, tenant, isNew, user); err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *Service) store(ctx context.Context, tenant Tenant, isNew bool, user User) error {
	if !isNew {
		return s.repo.Create(ctx, user)
	}
	if creator, ok := s.repo.(TenantUserCreator); ok {
		return creator.CreateWithTenant(ctx, tenant, user)
	}
	if err := s.tenants.Create(ctx, tenant); err != nil {
		return err
	}
	return s.repo.Create(ctx, user)
}

// resolveTenant returns the existing tenant named by nu.TenantID, or a tenant
// built from nu.CompanyName that is not yet stored.
func (s *Service) resolveTenant(ctx context.Context, nu NewUser) (Tenant, bool, error) {
	if nu.TenantID != "" {
		tenant, err := s.tenants.FindByID(ctx, nu.TenantID)
		if errors.Is(err, ErrNotFound) {
			return Tenant{}, false, ErrUnknownTenant
		}
		if err != nil {
			return Tenant{}, false, err
		}
		return tenant, false, nil
	}

	name := strings.TrimSpace(nu.CompanyName)
	if name == "" {
		return Tenant{}, false, ErrTenantRequired
	}
	return Tenant{ID: uuid.NewString(), Name: name, CreatedAt: s.now().UTC()}, true, nil
}

// Authenticate verifies credentials. Unknown phone and wrong password are
// indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, phone, password string) (User, error) {
	user, err := s.repo.FindByPhone(ctx, phone)
	if errors.Is(err, ErrNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

// SetPassword hashes password and stores it for the user with the given phone.
func (s *Service) SetPassword(ctx context.Context, phone, password string) error {
	hash, err := s.HashPassword(password)
	if err != nil {
		return err
	}
	return s.repo.UpdatePassword(ctx, phone, hash)
}
