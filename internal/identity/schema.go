package identity

import (
	"context"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS tenants (
    id         UUID PRIMARY KEY,
    name       TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS users (
    id            UUID PRIMARY KEY,
    tenant_id     UUID NOT NULL REFERENCES tenants(id),
    name          TEXT NOT NULL,
    phone         TEXT NOT NULL UNIQUE CHECK (phone ~ '^\+?[1-9][0-9]{1,14}$'),
    password_hash BYTEA NOT NULL,
    role          TEXT NOT NULL CHECK (role IN ('customer', 'driver', 'admin')),
    refresh_token TEXT,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS users_refresh_token_idx ON users (refresh_token);
`

// Migrate creates the identity tables if they do not exist yet.
func Migrate(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate identity schema: %w", err)
	}
	return nil
}
