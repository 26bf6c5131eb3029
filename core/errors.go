package core

import "errors"

var (
	ErrInvalidNonce                = errors.New("invalid nonce")
	ErrNonceExpired                = errors.New("nonce has expired")
	ErrInvalidSignature            = errors.New("invalid signature")
	ErrSignatureVerificationFailed = errors.New("signature verification failed")
	ErrInvalidRefreshToken         = errors.New("invalid refresh token")
	ErrInvalidToken                = errors.New("invalid token")
	ErrTokenExpired                = errors.New("token has expired")
	ErrUnauthorized                = errors.New("unauthorized")
	ErrForbidden                   = errors.New("forbidden")
	ErrSessionNotFound             = errors.New("session not found")
	ErrUserNotFound                = errors.New("user not found")
	ErrUserExists                  = errors.New("user already exists")
)

// ValidationError reports malformed input on a single field
type ValidationError struct {
	Field   string
	Message string
}

// Error returns "field: message"
func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
