package ports

import (
	"time"

	"github.com/layer-3/scryptex/core"
)

// Tokenizer mints and decodes session tokens
type Tokenizer interface {
	IssueAccessToken(userID, walletAddress string) (token string, expiresAt time.Time, err error)
	IssueRefreshToken(userID string) (token string, expiresAt time.Time, err error)

	// ParseAccessToken rejects anything that is not a valid, unexpired access token
	ParseAccessToken(token string) (*core.AccessPayload, error)

	// ParseExpiredAccessToken is ParseAccessToken without the expiry check.
	// Only for revoking the session a token belongs to.
	ParseExpiredAccessToken(token string) (*core.AccessPayload, error)

	// ParseRefreshToken rejects anything that is not a valid, unexpired refresh token
	ParseRefreshToken(token string) (*core.RefreshPayload, error)
}

// SignatureVerifier checks that message was signed by the key behind address
type SignatureVerifier interface {
	Verify(address, message, signature string) (bool, error)
}
