package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/layer-3/scryptex/ports"
)

func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container tests skipped in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("scryptex"),
		postgres.WithUsername("scryptex"),
		postgres.WithPassword("password"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	require.NoError(t, pool.Ping(pingCtx))

	require.NoError(t, Migrate(ctx, pool))
	return pool
}

func TestPostgresRepositories(t *testing.T) {
	pool := newTestPool(t)

	runRepositorySuite(t, func(t *testing.T) (ports.UserRepository, ports.SessionRepository) {
		_, err := pool.Exec(context.Background(), `TRUNCATE TABLE sessions, users CASCADE`)
		require.NoError(t, err)
		return NewPostgresUserRepository(pool), NewPostgresSessionRepository(pool)
	})
}
