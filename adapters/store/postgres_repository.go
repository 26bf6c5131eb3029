package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/layer-3/scryptex/core"
	"github.com/layer-3/scryptex/ports"
)

const uniqueViolation = "23505"

const userColumns = `id, wallet_address, email, username, role, created_at, updated_at`

const sessionColumns = `id, user_id, access_token_hash, refresh_token_hash, expires_at, is_active, ip_address, user_agent, created_at, updated_at`

// PostgresUserRepository stores users in PostgreSQL
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

var _ ports.UserRepository = (*PostgresUserRepository)(nil)

// NewPostgresUserRepository creates a user repository over pool
func NewPostgresUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Create inserts user and fills in its generated fields. A known wallet yields core.ErrUserExists.
func (r *PostgresUserRepository) Create(ctx context.Context, user *core.User) error {
	if user.Role == "" {
		user.Role = core.RoleUser
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (wallet_address, email, username, role)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userColumns,
		user.WalletAddress, user.Email, user.Username, user.Role)

	created, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return core.ErrUserExists
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	*user = *created
	return nil
}

// FindByID returns the user with id
func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (*core.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return userOrNotFound(scanUser(row))
}

// FindByWallet returns the user owning address
func (r *PostgresUserRepository) FindByWallet(ctx context.Context, address string) (*core.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE wallet_address = $1`, address)
	return userOrNotFound(scanUser(row))
}

// UpdateProfile sets the non-nil fields and returns the updated user
func (r *PostgresUserRepository) UpdateProfile(ctx context.Context, id string, email, username *string) (*core.User, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE users
		SET email = COALESCE($2, email),
		    username = COALESCE($3, username),
		    updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns,
		id, email, username)
	return userOrNotFound(scanUser(row))
}

// SetRole changes the role of the user owning address
func (r *PostgresUserRepository) SetRole(ctx context.Context, address string, role core.Role) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET role = $1, updated_at = now() WHERE wallet_address = $2`, role, address)
	if err != nil {
		return fmt.Errorf("failed to set role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrUserNotFound
	}
	return nil
}

// PostgresSessionRepository stores sessions in PostgreSQL
type PostgresSessionRepository struct {
	pool *pgxpool.Pool
}

var _ ports.SessionRepository = (*PostgresSessionRepository)(nil)

// NewPostgresSessionRepository creates a session repository over pool
func NewPostgresSessionRepository(pool *pgxpool.Pool) *PostgresSessionRepository {
	return &PostgresSessionRepository{pool: pool}
}

// Create inserts session and fills in its generated fields
func (r *PostgresSessionRepository) Create(ctx context.Context, session *core.Session) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO sessions (user_id, access_token_hash, refresh_token_hash, expires_at, is_active, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		session.UserID, session.AccessTokenHash, session.RefreshTokenHash, session.ExpiresAt,
		session.IsActive, session.IPAddress, session.UserAgent)

	if err := row.Scan(&session.ID, &session.CreatedAt, &session.UpdatedAt); err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// FindByAccessTokenHash returns the session currently bound to hash, active or not
func (r *PostgresSessionRepository) FindByAccessTokenHash(ctx context.Context, hash string) (*core.Session, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE access_token_hash = $1`, hash)
	return sessionOrNotFound(scanSession(row))
}

// FindActiveByRefreshTokenHash returns the active session issued with hash
func (r *PostgresSessionRepository) FindActiveByRefreshTokenHash(ctx context.Context, hash string) (*core.Session, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE refresh_token_hash = $1 AND is_active = true`, hash)
	return sessionOrNotFound(scanSession(row))
}

// UpdateAccessToken rebinds an active session to a new access token
func (r *PostgresSessionRepository) UpdateAccessToken(ctx context.Context, id, hash string, expiresAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE sessions
		SET access_token_hash = $1, expires_at = $2, updated_at = now()
		WHERE id = $3 AND is_active = true`, hash, expiresAt, id)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrSessionNotFound
	}
	return nil
}

// RevokeByAccessTokenHash deactivates the sessions of userID bound to hash
func (r *PostgresSessionRepository) RevokeByAccessTokenHash(ctx context.Context, hash, userID string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE sessions
		SET is_active = false, updated_at = now()
		WHERE access_token_hash = $1 AND user_id = $2 AND is_active = true`, hash, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke session: %w", err)
	}
	return tag.RowsAffected(), nil
}

// RevokeAllForUser deactivates every active session of userID
func (r *PostgresSessionRepository) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE sessions
		SET is_active = false, updated_at = now()
		WHERE user_id = $1 AND is_active = true`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListActiveByUser returns the sessions of userID usable at now, newest first
func (r *PostgresSessionRepository) ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]*core.Session, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE user_id = $1 AND is_active = true AND expires_at > $2
		ORDER BY created_at DESC`, userID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []*core.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanUser(row pgx.Row) (*core.User, error) {
	var u core.User
	err := row.Scan(&u.ID, &u.WalletAddress, &u.Email, &u.Username, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func scanSession(row pgx.Row) (*core.Session, error) {
	var s core.Session
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.AccessTokenHash,
		&s.RefreshTokenHash,
		&s.ExpiresAt,
		&s.IsActive,
		&s.IPAddress,
		&s.UserAgent,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func userOrNotFound(u *core.User, err error) (*core.User, error) {
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return u, nil
}

func sessionOrNotFound(s *core.Session, err error) (*core.Session, error) {
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return s, nil
}
