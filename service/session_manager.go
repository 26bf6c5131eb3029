package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/layer-3/scryptex/core"
	"github.com/layer-3/scryptex/ports"
)

// SessionManagerConfig tunes a SessionManager
type SessionManagerConfig struct {
	// AdminAddresses are granted the admin role when their user record is created
	AdminAddresses []string

	Now func() time.Time
}

// SessionManager issues, refreshes and revokes sessions
type SessionManager struct {
	users     ports.UserRepository
	sessions  ports.SessionRepository
	tokenizer ports.Tokenizer
	eventPub  ports.EventPublisher
	logger    *slog.Logger

	admins map[string]struct{}
	now    func() time.Time
}

// NewSessionManager creates a new session manager. eventPub may be nil.
func NewSessionManager(
	users ports.UserRepository,
	sessions ports.SessionRepository,
	tokenizer ports.Tokenizer,
	eventPub ports.EventPublisher,
	logger *slog.Logger,
	cfg SessionManagerConfig,
) *SessionManager {
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	admins := make(map[string]struct{}, len(cfg.AdminAddresses))
	for _, addr := range cfg.AdminAddresses {
		admins[strings.ToLower(addr)] = struct{}{}
	}

	return &SessionManager{
		users:     users,
		sessions:  sessions,
		tokenizer: tokenizer,
		eventPub:  eventPub,
		logger:    logger.With("component", "session_manager"),
		admins:    admins,
		now:       now,
	}
}

// HashToken returns the digest under which a token is stored
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Authenticate opens a new session for an already verified wallet address.
// Every call creates an independent session so several devices can stay logged in.
func (m *SessionManager) Authenticate(ctx context.Context, walletAddress string, meta core.ClientMeta) (*core.AuthResult, error) {
	user, outcome, err := m.findOrCreateUser(ctx, walletAddress)
	if err != nil {
		return nil, err
	}

	accessToken, expiresAt, err := m.tokenizer.IssueAccessToken(user.ID, user.WalletAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}

	refreshToken, _, err := m.tokenizer.IssueRefreshToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh token: %w", err)
	}

	session := &core.Session{
		UserID:           user.ID,
		AccessTokenHash:  HashToken(accessToken),
		RefreshTokenHash: HashToken(refreshToken),
		ExpiresAt:        expiresAt,
		IsActive:         true,
		IPAddress:        meta.IPAddress,
		UserAgent:        meta.UserAgent,
	}
	if err := m.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	m.logger.Info("session created",
		"user_id", user.ID,
		"session_id", session.ID,
		"outcome", outcome.String())
	m.publish(ctx, core.SessionEvent{
		Type:          core.SessionCreated,
		UserID:        user.ID,
		SessionID:     session.ID,
		WalletAddress: user.WalletAddress,
	})

	return &core.AuthResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
		Session:      session,
		User:         user,
		Outcome:      outcome,
	}, nil
}

// Refresh mints a new access token for the session owning refreshToken.
// The session row is updated in place, so the previous access token stops matching.
func (m *SessionManager) Refresh(ctx context.Context, refreshToken string) (string, time.Time, error) {
	payload, err := m.tokenizer.ParseRefreshToken(refreshToken)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %v", core.ErrInvalidRefreshToken, err)
	}

	session, err := m.sessions.FindActiveByRefreshTokenHash(ctx, HashToken(refreshToken))
	if errors.Is(err, core.ErrSessionNotFound) {
		return "", time.Time{}, core.ErrInvalidRefreshToken
	}
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to look up session: %w", err)
	}
	if session.UserID != payload.UserID {
		return "", time.Time{}, core.ErrInvalidRefreshToken
	}

	user, err := m.users.FindByID(ctx, session.UserID)
	if errors.Is(err, core.ErrUserNotFound) {
		return "", time.Time{}, core.ErrInvalidRefreshToken
	}
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to load user: %w", err)
	}

	accessToken, expiresAt, err := m.tokenizer.IssueAccessToken(user.ID, user.WalletAddress)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to create access token: %w", err)
	}

	err = m.sessions.UpdateAccessToken(ctx, session.ID, HashToken(accessToken), expiresAt)
	if errors.Is(err, core.ErrSessionNotFound) {
		return "", time.Time{}, core.ErrInvalidRefreshToken
	}
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to update session: %w", err)
	}

	m.publish(ctx, core.SessionEvent{
		Type:      core.SessionRefreshed,
		UserID:    user.ID,
		SessionID: session.ID,
	})

	return accessToken, expiresAt, nil
}

// Revoke deactivates the sessions of userID currently bound to accessToken.
// Revoking an unknown or already revoked session is not an error.
func (m *SessionManager) Revoke(ctx context.Context, accessToken, userID string) error {
	n, err := m.sessions.RevokeByAccessTokenHash(ctx, HashToken(accessToken), userID)
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	if n > 0 {
		m.publish(ctx, core.SessionEvent{Type: core.SessionRevoked, UserID: userID, Count: n})
	}
	return nil
}

// Logout revokes the session bound to accessToken on behalf of the user the token names.
// An expired but otherwise valid token still logs out, so its refresh token dies with it.
func (m *SessionManager) Logout(ctx context.Context, accessToken string) error {
	payload, err := m.tokenizer.ParseAccessToken(accessToken)
	if errors.Is(err, core.ErrTokenExpired) {
		payload, err = m.tokenizer.ParseExpiredAccessToken(accessToken)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrUnauthorized, err)
	}
	return m.Revoke(ctx, accessToken, payload.UserID)
}

// RevokeAll deactivates every session of userID
func (m *SessionManager) RevokeAll(ctx context.Context, userID string) (int64, error) {
	n, err := m.sessions.RevokeAllForUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke sessions: %w", err)
	}

	m.logger.Info("sessions revoked", "user_id", userID, "count", n)
	m.publish(ctx, core.SessionEvent{Type: core.SessionsPurged, UserID: userID, Count: n})
	return n, nil
}

// GetActiveSession returns the session currently bound to accessToken.
// Unknown, revoked and expired sessions all yield core.ErrSessionNotFound.
func (m *SessionManager) GetActiveSession(ctx context.Context, accessToken string) (*core.Session, error) {
	session, err := m.sessions.FindByAccessTokenHash(ctx, HashToken(accessToken))
	if errors.Is(err, core.ErrSessionNotFound) {
		return nil, core.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}
	if !session.Usable(m.now()) {
		return nil, core.ErrSessionNotFound
	}
	return session, nil
}

// ListSessions returns the usable sessions of userID, newest first
func (m *SessionManager) ListSessions(ctx context.Context, userID string) ([]*core.Session, error) {
	sessions, err := m.sessions.ListActiveByUser(ctx, userID, m.now())
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// ResolveAccessToken authenticates a bearer token: it must decode locally
// and still be bound to a live session of the user it names.
func (m *SessionManager) ResolveAccessToken(ctx context.Context, accessToken string) (*core.User, *core.Session, error) {
	payload, err := m.tokenizer.ParseAccessToken(accessToken)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", core.ErrUnauthorized, err)
	}

	session, err := m.GetActiveSession(ctx, accessToken)
	if errors.Is(err, core.ErrSessionNotFound) {
		return nil, nil, core.ErrUnauthorized
	}
	if err != nil {
		return nil, nil, err
	}
	if session.UserID != payload.UserID {
		return nil, nil, core.ErrUnauthorized
	}

	user, err := m.users.FindByID(ctx, session.UserID)
	if errors.Is(err, core.ErrUserNotFound) {
		return nil, nil, core.ErrUnauthorized
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !strings.EqualFold(user.WalletAddress, payload.WalletAddress) {
		return nil, nil, core.ErrUnauthorized
	}

	return user, session, nil
}

func (m *SessionManager) findOrCreateUser(ctx context.Context, walletAddress string) (*core.User, core.Outcome, error) {
	user, err := m.users.FindByWallet(ctx, walletAddress)
	if err == nil {
		return user, core.ExistingUser, nil
	}
	if !errors.Is(err, core.ErrUserNotFound) {
		return nil, core.ExistingUser, fmt.Errorf("failed to look up user: %w", err)
	}

	user = &core.User{WalletAddress: walletAddress, Role: core.RoleUser}
	if _, ok := m.admins[walletAddress]; ok {
		user.Role = core.RoleAdmin
	}

	err = m.users.Create(ctx, user)
	if errors.Is(err, core.ErrUserExists) {
		// lost a race with a concurrent first login
		user, err = m.users.FindByWallet(ctx, walletAddress)
		if err != nil {
			return nil, core.ExistingUser, fmt.Errorf("failed to look up user: %w", err)
		}
		return user, core.ExistingUser, nil
	}
	if err != nil {
		return nil, core.NewUser, fmt.Errorf("failed to create user: %w", err)
	}

	m.logger.Info("user created", "user_id", user.ID, "wallet", walletAddress, "role", user.Role)
	return user, core.NewUser, nil
}

func (m *SessionManager) publish(ctx context.Context, event core.SessionEvent) {
	if m.eventPub == nil {
		return
	}
	event.OccurredAt = m.now().UTC()

	// the session store is authoritative, a lost event only delays other instances
	if err := m.eventPub.PublishSessionEvent(ctx, event); err != nil {
		m.logger.Warn("failed to publish session event", "type", event.Type, "user_id", event.UserID, "err", err)
	}
}
