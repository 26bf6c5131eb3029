// Package app builds the service graph from a loaded configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/layer-3/scryptex/adapters/events"
	"github.com/layer-3/scryptex/adapters/store"
	"github.com/layer-3/scryptex/adapters/tokenizer"
	"github.com/layer-3/scryptex/adapters/verifier"
	"github.com/layer-3/scryptex/config"
	"github.com/layer-3/scryptex/ports"
	"github.com/layer-3/scryptex/service"
	transport "github.com/layer-3/scryptex/transport/http"
)

// App holds the wired services and the backends they need closed
type App struct {
	Auth   *service.AuthService
	Users  ports.UserRepository
	Router *gin.Engine

	closers []func() error
}

// New connects the configured backends and wires the services on top of them.
// The returned App must be closed.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	users, sessions, err := a.repositories(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Users = users

	var nonces ports.NonceStore
	if cfg.Nonce.Driver == "redis" {
		client, err := newRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		nonces = store.NewRedisNonceStore(client, cfg.Auth.NonceTTL, nil)
	} else {
		nonces = store.NewMemoryNonceStore(cfg.Auth.NonceTTL, nil)
	}

	var eventPub ports.EventPublisher
	if cfg.Events.Enabled {
		// the publisher closes its client itself, so it must not share the nonce store's
		client, err := newRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
		publisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{Client: client},
			watermill.NewSlogLogger(logger),
		)
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to create event publisher: %w", err)
		}
		a.closers = append(a.closers, publisher.Close)
		eventPub = events.NewWatermillPublisher(publisher, cfg.Events.Topic)
	}

	tokens, err := tokenizer.NewJWTTokenizer(tokenizer.Config{
		Secret:     []byte(cfg.Auth.JWTSecret),
		AccessTTL:  cfg.Auth.AccessTTL,
		RefreshTTL: cfg.Auth.RefreshTTL,
	})
	if err != nil {
		return nil, err
	}

	manager := service.NewSessionManager(users, sessions, tokens, eventPub, logger, service.SessionManagerConfig{
		AdminAddresses: cfg.Auth.AdminAddresses,
	})
	a.Auth = service.NewAuthService(nonces, verifier.NewEthVerifier(), manager, users, logger, cfg.Auth.Product)

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	a.Router = transport.SetupRouter(a.Auth, logger)

	ok = true
	return a, nil
}

func (a *App) repositories(ctx context.Context, cfg *config.Config) (ports.UserRepository, ports.SessionRepository, error) {
	if cfg.Store.Driver != "postgres" {
		return store.NewMemoryUserRepository(), store.NewMemorySessionRepository(), nil
	}

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	a.closers = append(a.closers, func() error { pool.Close(); return nil })

	if err := pool.Ping(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to reach postgres: %w", err)
	}
	if err := store.Migrate(ctx, pool); err != nil {
		return nil, nil, err
	}
	return store.NewPostgresUserRepository(pool), store.NewPostgresSessionRepository(pool), nil
}

func newRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to reach redis: %w", err)
	}
	return client, nil
}

// Close releases backends in reverse order of acquisition
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
