package identity

import (
	"context"
	"sync"
	"time"
)

type memoryRepository struct {
	mu    sync.RWMutex
	users map[string]User // keyed by id
}

// NewMemoryRepository builds an in-memory user store for development and tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{users: make(map[string]User)}
}

func (r *memoryRepository) Create(_ context.Context, user User) error {
	if err := user.validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Phone == user.Phone {
			return ErrPhoneTaken
		}
	}
	r.users[user.ID] = user
	return nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (r *memoryRepository) FindByPhone(_ context.Context, phone string) (User, error) {
	return r.findBy(func(u User) bool { return u.Phone == phone })
}

func (r *memoryRepository) FindByRefreshToken(_ context.Context, token string) (User, error) {
	if token == "" {
		return User{}, ErrNotFound
	}
	return r.findBy(func(u User) bool { return u.RefreshToken == token })
}

func (r *memoryRepository) UpdateRefreshToken(_ context.Context, id, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	user.RefreshToken = token
	user.UpdatedAt = time.Now().UTC()
	r.users[id] = user
	return nil
}

func (r *memoryRepository) UpdatePassword(_ context.Context, phone string, hash []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, user := range r.users {
		if user.Phone == phone {
			user.PasswordHash = hash
			user.UpdatedAt = time.Now().UTC()
			r.users[id] = user
			return nil
		}
	}
	return ErrNotFound
}

func (r *memoryRepository) findBy(match func(User) bool) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if match(user) {
			return user, nil
		}
	}
	return User{}, ErrNotFound
}

type memoryTenantRepository struct {
	mu      sync.RWMutex
	tenants map[string]Tenant
}

// NewMemoryTenantRepository builds an in-memory tenant store.
func NewMemoryTenantRepository() TenantRepository {
	return &memoryTenantRepository{tenants: make(map[string]Tenant)}
}

func (r *memoryTenantRepository) Create(_ context.Context, tenant Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tenants[tenant.ID] = tenant
	return nil
}

func (r *memoryTenantRepository) FindByID(_ context.Context, id string) (Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tenant, ok := r.tenants[id]
	if !ok {
		return Tenant{}, ErrNotFound
	}
	return tenant, nil
}
