package tokenizer

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/layer-3/scryptex/core"
)

// AccessClaims is the tagged payload of an access token
type AccessClaims struct {
	jwt.RegisteredClaims
	Kind          core.TokenKind `json:"kind"`
	UserID        string         `json:"uid"`
	WalletAddress string         `json:"wallet"`
}

// Validate is run by the parser after the registered claims checks
func (c AccessClaims) Validate() error {
	if c.Kind != core.TokenKindAccess {
		return fmt.Errorf("unexpected token kind %q", c.Kind)
	}
	if _, err := uuid.Parse(c.UserID); err != nil {
		return fmt.Errorf("invalid uid claim: %w", err)
	}
	if _, err := core.NormalizeAddress(c.WalletAddress); err != nil {
		return fmt.Errorf("invalid wallet claim: %w", err)
	}
	if c.Subject != c.UserID {
		return fmt.Errorf("subject does not match uid")
	}
	return nil
}

// RefreshClaims is the tagged payload of a refresh token
type RefreshClaims struct {
	jwt.RegisteredClaims
	Kind   core.TokenKind `json:"kind"`
	UserID string         `json:"uid"`
}

// Validate is run by the parser after the registered claims checks
func (c RefreshClaims) Validate() error {
	if c.Kind != core.TokenKindRefresh {
		return fmt.Errorf("unexpected token kind %q", c.Kind)
	}
	if _, err := uuid.Parse(c.UserID); err != nil {
		return fmt.Errorf("invalid uid claim: %w", err)
	}
	if c.Subject != c.UserID {
		return fmt.Errorf("subject does not match uid")
	}
	return nil
}
