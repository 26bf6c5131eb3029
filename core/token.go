package core

import "time"

// TokenKind tags the payload variant carried by a session token
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// AccessPayload is the decoded content of an access token
type AccessPayload struct {
	ID            string
	UserID        string
	WalletAddress string
	ExpiresAt     time.Time
}

// RefreshPayload is the decoded content of a refresh token
type RefreshPayload struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
}

// SessionEventType names a session lifecycle transition
type SessionEventType string

const (
	SessionCreated   SessionEventType = "session.created"
	SessionRefreshed SessionEventType = "session.refreshed"
	SessionRevoked   SessionEventType = "session.revoked"
	SessionsPurged   SessionEventType = "session.revoked_all"
)

// SessionEvent is broadcast whenever a session changes state
type SessionEvent struct {
	Type          SessionEventType `json:"type"`
	UserID        string           `json:"user_id"`
	SessionID     string           `json:"session_id,omitempty"`
	WalletAddress string           `json:"wallet_address,omitempty"`
	Count         int64            `json:"count,omitempty"`
	OccurredAt    time.Time        `json:"occurred_at"`
}
