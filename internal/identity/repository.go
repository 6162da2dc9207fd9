package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// Repository persists users.
type Repository interface {
	Create(ctx context.Context, user User) error
	FindByID(ctx context.Context, id string) (User, error)
	FindByPhone(ctx context.Context, phone string) (User, error)
	FindByRefreshToken(ctx context.Context, token string) (User, error)
	UpdateRefreshToken(ctx context.Context, id, token string) error
	UpdatePassword(ctx context.Context, phone string, hash []byte) error
}

// TenantUserCreator is implemented by repositories that can store a new
// tenant and its first user in one transaction.
type TenantUserCreator interface {
	CreateWithTenant(ctx context.Context, tenant Tenant, user User) error
}

// TenantRepository persists tenants.
type TenantRepository interface {
	Create(ctx context.Context, tenant Tenant) error
	FindByID(ctx context.Context, id string) (Tenant, error)
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// DB is the subset of *pgxpool.Pool used by the Postgres repositories.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db DB
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, tenant_id, name, phone, password_hash, role, refresh_token, created_at, updated_at`

// Create inserts a new user.
func (r *PostgresRepository) Create(ctx context.Context, user User) error {
	if err := user.validate(); err != nil {
		return err
	}
	return insertUser(ctx, r.db, user)
}

// CreateWithTenant inserts tenant and user in one transaction, so a rejected
// user leaves no tenant behind.
func (r *PostgresRepository) CreateWithTenant(ctx context.Context, tenant Tenant, user User) error {
	if err := user.validate(); err != nil {
		return err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := insertTenant(ctx, tx, tenant); err != nil {
		return err
	}
	if err := insertUser(ctx, tx, user); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func insertUser(ctx context.Context, db execer, user User) error {
	userID, err := uuid.Parse(user.ID)
	if err != nil {
		return err
	}
	tenantID, err := uuid.Parse(user.TenantID)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, `INSERT INTO users (`+userColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		userID, tenantID, user.Name, user.Phone, user.PasswordHash, string(user.Role),
		nullable(user.RefreshToken), user.CreatedAt.UTC(), user.UpdatedAt.UTC())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrPhoneTaken
	}
	return err
}

// FindByID fetches a user by id.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return User{}, ErrNotFound
	}
	return r.scanOne(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
}

// FindByPhone fetches a user by phone number.
func (r *PostgresRepository) FindByPhone(ctx context.Context, phone string) (User, error) {
	return r.scanOne(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE phone = $1`, phone))
}

// FindByRefreshToken fetches the user whose stored refresh token equals token.
func (r *PostgresRepository) FindByRefreshToken(ctx context.Context, token string) (User, error) {
	if token == "" {
		return User{}, ErrNotFound
	}
	return r.scanOne(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE refresh_token = $1`, token))
}

// UpdateRefreshToken overwrites the stored refresh token. An empty token clears it.
func (r *PostgresRepository) UpdateRefreshToken(ctx context.Context, id, token string) error {
	userID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `UPDATE users SET refresh_token = $1, updated_at = $2 WHERE id = $3`,
		nullable(token), time.Now().UTC(), userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdatePassword replaces the password hash of the user with the given phone.
func (r *PostgresRepository) UpdatePassword(ctx context.Context, phone string, hash []byte) error {
	cmd, err := r.db.Exec(ctx, `UPDATE users SET password_hash = $1, updated_at = $2 WHERE phone = $3`,
		hash, time.Now().UTC(), phone)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) scanOne(row pgx.Row) (User, error) {
	var (
		id, tenantID uuid.UUID
		role         string
		refresh      *string
		user         User
	)
	err := row.Scan(&id, &tenantID, &user.Name, &user.Phone, &user.PasswordHash, &role, &refresh, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	user.ID = id.String()
	user.TenantID = tenantID.String()
	user.Role = Role(role)
	if refresh != nil {
		user.RefreshToken = *refresh
	}
	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()
	return user, nil
}

// PostgresTenantRepository implements TenantRepository using PostgreSQL.
type PostgresTenantRepository struct {
	db DB
}

// NewPostgresTenantRepository builds a Postgres-backed tenant repository.
func NewPostgresTenantRepository(db DB) *PostgresTenantRepository {
	return &PostgresTenantRepository{db: db}
}

// Create inserts a new tenant.
func (r *PostgresTenantRepository) Create(ctx context.Context, tenant Tenant) error {
	return insertTenant(ctx, r.db, tenant)
}

func insertTenant(ctx context.Context, db execer, tenant Tenant) error {
	tenantID, err := uuid.Parse(tenant.ID)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, `INSERT INTO tenants (id, name, created_at) VALUES ($1, $2, $3)`,
		tenantID, tenant.Name, tenant.CreatedAt.UTC())
	return err
}

// FindByID fetches a tenant by id.
func (r *PostgresTenantRepository) FindByID(ctx context.Context, id string) (Tenant, error) {
	tenantID, err := uuid.Parse(id)
	if err != nil {
		return Tenant{}, ErrNotFound
	}
	var (
		scanned uuid.UUID
		tenant  Tenant
	)
	err = r.db.QueryRow(ctx, `SELECT id, name, created_at FROM tenants WHERE id = $1`, tenantID).
		Scan(&scanned, &tenant.Name, &tenant.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Tenant{}, ErrNotFound
	}
	if err != nil {
		return Tenant{}, err
	}
	tenant.ID = scanned.String()
	tenant.CreatedAt = tenant.CreatedAt.UTC()
	return tenant, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
