package scryptex

import (
	"context"
	"time"
)

// Client represents the public interface for interacting with the session service
type Client interface {
	// Challenge asks the server for a nonce to sign with wallet
	Challenge(ctx context.Context, wallet string) (*Challenge, error)

	// Verify submits the signed challenge and opens a new session
	Verify(ctx context.Context, wallet, signature, nonce string) (*Login, error)

	// Refresh trades a refresh token for a new access token
	Refresh(ctx context.Context, refreshToken string) (*AccessToken, error)

	// Logout revokes the session bound to accessToken
	Logout(ctx context.Context, accessToken string) error

	// Me returns the user owning accessToken
	Me(ctx context.Context, accessToken string) (*User, error)

	// UpdateProfile changes the non-nil profile fields
	UpdateProfile(ctx context.Context, accessToken string, email, username *string) (*User, error)

	// Sessions lists the live sessions of the caller
	Sessions(ctx context.Context, accessToken string) ([]Session, error)

	// Status reports whether accessToken is currently accepted. An empty token is allowed.
	Status(ctx context.Context, accessToken string) (*Status, error)

	// RevokeUserSessions logs userID out everywhere. Requires an admin token.
	RevokeUserSessions(ctx context.Context, accessToken, userID string) (int64, error)
}

// Signer produces an EIP-191 personal_sign signature over message
type Signer interface {
	Address() string
	SignMessage(message string) (string, error)
}

// Challenge is a nonce and the exact message the wallet must sign
type Challenge struct {
	Nonce     string    `json:"nonce"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// AccessToken is a bearer token and its expiry
type AccessToken struct {
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"tokenType"`
	ExpiresAt   time.Time `json:"expiresAt"`
	ExpiresIn   int       `json:"expiresIn"`
}

// Login is the result of a successful verify
type Login struct {
	AccessToken
	RefreshToken string `json:"refreshToken"`
	IsNewUser    bool   `json:"isNewUser"`
	User         User   `json:"user"`
}

// User is the public view of an account
type User struct {
	ID            string  `json:"id"`
	WalletAddress string  `json:"walletAddress"`
	Email         *string `json:"email,omitempty"`
	Username      *string `json:"username,omitempty"`
	Role          string  `json:"role"`
}

// Session is one logged-in device of the caller
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	IPAddress string    `json:"ipAddress,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
	Current   bool      `json:"current"`
}

// Status tells whether the presented token is accepted
type Status struct {
	Authenticated bool  `json:"authenticated"`
	User          *User `json:"user,omitempty"`
}
