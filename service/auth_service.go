package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"regexp"
	"strings"

	"github.com/layer-3/scryptex/core"
	"github.com/layer-3/scryptex/ports"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,32}$`)

// AuthService handles the wallet sign-in flow and user profiles
type AuthService struct {
	nonces   ports.NonceStore
	verifier ports.SignatureVerifier
	sessions *SessionManager
	users    ports.UserRepository
	logger   *slog.Logger
	product  string
}

// NewAuthService creates a new authentication service
func NewAuthService(
	nonces ports.NonceStore,
	verifier ports.SignatureVerifier,
	sessions *SessionManager,
	users ports.UserRepository,
	logger *slog.Logger,
	product string,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	if product == "" {
		product = core.DefaultProduct
	}
	return &AuthService{
		nonces:   nonces,
		verifier: verifier,
		sessions: sessions,
		users:    users,
		logger:   logger.With("component", "auth_service"),
		product:  product,
	}
}

// Sessions exposes the session manager backing this service
func (s *AuthService) Sessions() *SessionManager {
	return s.sessions
}

// RequestChallenge issues a nonce for walletAddress and the message to sign
func (s *AuthService) RequestChallenge(ctx context.Context, walletAddress string) (*core.Challenge, error) {
	address, err := core.NormalizeAddress(walletAddress)
	if err != nil {
		return nil, err
	}

	challenge, err := s.nonces.Issue(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to issue challenge: %w", err)
	}
	challenge.Message = core.ChallengeMessage(s.product, challenge.Nonce)

	return challenge, nil
}

// VerifyAndAuthenticate spends the nonce, checks the signature over the
// challenge message and opens a session. The nonce is checked first, so a
// valid signature over a stale or spent nonce never logs anyone in.
func (s *AuthService) VerifyAndAuthenticate(ctx context.Context, walletAddress, signature, nonce string, meta core.ClientMeta) (*core.AuthResult, error) {
	address, err := core.NormalizeAddress(walletAddress)
	if err != nil {
		return nil, err
	}
	if signature == "" {
		return nil, &core.ValidationError{Field: "signature", Message: "is required"}
	}
	if nonce == "" {
		return nil, &core.ValidationError{Field: "nonce", Message: "is required"}
	}

	if err := s.nonces.Consume(ctx, address, nonce); err != nil {
		if errors.Is(err, core.ErrInvalidNonce) || errors.Is(err, core.ErrNonceExpired) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to consume nonce: %w", err)
	}

	ok, err := s.verifier.Verify(address, core.ChallengeMessage(s.product, nonce), signature)
	if err != nil {
		if errors.Is(err, core.ErrSignatureVerificationFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to verify signature: %w", err)
	}
	if !ok {
		s.logger.Info("signature mismatch", "wallet", address)
		return nil, core.ErrInvalidSignature
	}

	return s.sessions.Authenticate(ctx, address, meta)
}

// User returns the user with id
func (s *AuthService) User(ctx context.Context, id string) (*core.User, error) {
	return s.users.FindByID(ctx, id)
}

// UpdateProfile changes the optional profile fields of a user. Nil fields are left untouched.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, email, username *string) (*core.User, error) {
	if email != nil {
		trimmed := strings.TrimSpace(*email)
		addr, err := mail.ParseAddress(trimmed)
		if err != nil || addr.Address != trimmed {
			return nil, &core.ValidationError{Field: "email", Message: "must be a valid email address"}
		}
		email = &trimmed
	}
	if username != nil && !usernamePattern.MatchString(*username) {
		return nil, &core.ValidationError{Field: "username", Message: "must be 3-32 letters, digits or underscores"}
	}
	if email == nil && username == nil {
		return s.users.FindByID(ctx, userID)
	}

	user, err := s.users.UpdateProfile(ctx, userID, email, username)
	if err != nil {
		return nil, err
	}
	return user, nil
}
