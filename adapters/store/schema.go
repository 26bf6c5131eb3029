package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id             uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	wallet_address text NOT NULL UNIQUE,
	email          text,
	username       text,
	role           text NOT NULL DEFAULT 'user',
	created_at     timestamptz NOT NULL DEFAULT now(),
	updated_at     timestamptz NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS sessions (
	id                 uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	user_id            uuid NOT NULL REFERENCES users(id),
	access_token_hash  text NOT NULL,
	refresh_token_hash text NOT NULL,
	expires_at         timestamptz NOT NULL,
	is_active          boolean NOT NULL DEFAULT true,
	ip_address         text NOT NULL DEFAULT '',
	user_agent         text NOT NULL DEFAULT '',
	created_at         timestamptz NOT NULL DEFAULT now(),
	updated_at         timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS sessions_access_token_hash_idx ON sessions (access_token_hash);
CREATE INDEX IF NOT EXISTS sessions_refresh_token_hash_idx ON sessions (refresh_token_hash);
`

// Migrate creates the users and sessions tables when they do not exist yet
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
