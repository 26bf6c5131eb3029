package ports

//go:generate mockgen -destination=mocks/mock_ports.go -package=mocks . NonceStore,UserRepository,SessionRepository,EventPublisher

import (
	"context"
	"time"

	"github.com/layer-3/scryptex/core"
)

// NonceStore keeps one live challenge per wallet address
type NonceStore interface {
	// Issue creates a fresh challenge for address, replacing any previous one
	Issue(ctx context.Context, address string) (*core.Challenge, error)

	// Consume atomically spends the challenge for address if nonce matches.
	// It returns core.ErrInvalidNonce or core.ErrNonceExpired otherwise.
	Consume(ctx context.Context, address, nonce string) error
}

// UserRepository persists users keyed by wallet address
type UserRepository interface {
	Create(ctx context.Context, user *core.User) error
	FindByID(ctx context.Context, id string) (*core.User, error)
	FindByWallet(ctx context.Context, address string) (*core.User, error)
	UpdateProfile(ctx context.Context, id string, email, username *string) (*core.User, error)
	SetRole(ctx context.Context, address string, role core.Role) error
}

// SessionRepository persists sessions. Token columns hold hashes, never raw tokens.
type SessionRepository interface {
	Create(ctx context.Context, session *core.Session) error
	FindByAccessTokenHash(ctx context.Context, hash string) (*core.Session, error)
	FindActiveByRefreshTokenHash(ctx context.Context, hash string) (*core.Session, error)
	UpdateAccessToken(ctx context.Context, id, hash string, expiresAt time.Time) error
	RevokeByAccessTokenHash(ctx context.Context, hash, userID string) (int64, error)
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)
	ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]*core.Session, error)
}
