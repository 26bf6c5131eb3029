package scryptex

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidNonce is returned when the nonce was never issued, already spent or superseded
	ErrInvalidNonce = errors.New("invalid nonce")

	// ErrNonceExpired is returned when the challenge outlived its window
	ErrNonceExpired = errors.New("nonce has expired")

	// ErrInvalidSignature is returned when the signature recovers another address
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrMalformedSignature is returned when the signature could not be decoded
	ErrMalformedSignature = errors.New("signature verification failed")

	// ErrInvalidRefreshToken is returned when a refresh token is unknown, revoked or expired
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	// ErrUnauthorized is returned when the access token is not accepted
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the caller lacks the admin role
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound is returned when the addressed user does not exist
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned when the server rejected a request field
	ErrValidation = errors.New("validation error")
)

var codeErrors = map[string]error{
	"INVALID_NONCE":                 ErrInvalidNonce,
	"NONCE_EXPIRED":                 ErrNonceExpired,
	"INVALID_SIGNATURE":             ErrInvalidSignature,
	"SIGNATURE_VERIFICATION_FAILED": ErrMalformedSignature,
	"INVALID_REFRESH_TOKEN":         ErrInvalidRefreshToken,
	"UNAUTHORIZED":                  ErrUnauthorized,
	"FORBIDDEN":                     ErrForbidden,
	"NOT_FOUND":                     ErrNotFound,
	"VALIDATION_ERROR":              ErrValidation,
}

// APIError is a non-2xx response decoded from the server's error envelope
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
	Field      string `json:"field,omitempty"`
}

// Error formats the status, code and message
func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%d %s: %s (%s)", e.StatusCode, e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Unwrap lets errors.Is match the sentinel for the response code
func (e *APIError) Unwrap() error {
	return codeErrors[e.Code]
}
