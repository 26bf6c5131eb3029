package core

import (
	"regexp"
	"strings"
	"time"
)

// DefaultProduct is the product name embedded in challenge messages
const DefaultProduct = "SCRYPTEX"

var walletAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// Challenge represents an authentication challenge issued to a wallet
type Challenge struct {
	Address   string    // Lowercase wallet address
	Nonce     string    // Random single-use nonce
	Message   string    // Message the wallet is asked to sign
	IssuedAt  time.Time // When the challenge was created
	ExpiresAt time.Time // When the challenge stops being accepted
}

// Role is a capability attached to a user record
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User represents a wallet owner known to the platform
type User struct {
	ID            string
	WalletAddress string
	Email         *string
	Username      *string
	Role          Role
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsAdmin reports whether the user holds the admin capability
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Session represents a persisted login of a user on one device
type Session struct {
	ID               string    // Unique session identifier
	UserID           string    // Owning user
	AccessTokenHash  string    // Hash of the currently valid access token
	RefreshTokenHash string    // Hash of the refresh token
	ExpiresAt        time.Time // When the current access token expires
	IsActive         bool      // False once revoked
	IPAddress        string
	UserAgent        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Usable reports whether the session may still authorize requests at now
func (s *Session) Usable(now time.Time) bool {
	return s != nil && s.IsActive && now.Before(s.ExpiresAt)
}

// ClientMeta carries request provenance recorded on a session
type ClientMeta struct {
	IPAddress string
	UserAgent string
}

// Outcome tells a signup apart from a login
type Outcome int

const (
	ExistingUser Outcome = iota
	NewUser
)

// String returns new_user or existing_user
func (o Outcome) String() string {
	if o == NewUser {
		return "new_user"
	}
	return "existing_user"
}

// AuthResult is returned after a successful wallet authentication
type AuthResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Session      *Session
	User         *User
	Outcome      Outcome
}

// ChallengeMessage builds the exact text a wallet signs for nonce
func ChallengeMessage(product, nonce string) string {
	return "Sign this message to authenticate with " + product + ": " + nonce
}

// NormalizeAddress validates a 0x-prefixed 20-byte hex address and lowercases it
func NormalizeAddress(address string) (string, error) {
	if !walletAddressPattern.MatchString(address) {
		return "", &ValidationError{Field: "walletAddress", Message: "must be a 0x-prefixed 20-byte hex address"}
	}
	return strings.ToLower(address), nil
}
