package tokenizer

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/layer-3/scryptex/core"
	"github.com/layer-3/scryptex/ports"
)

// Audiences keep access and refresh tokens from standing in for each other
const (
	AudienceAccess  = "session:access"
	AudienceRefresh = "session:refresh"
)

const (
	DefaultIssuer     = "scryptex"
	DefaultAccessTTL  = time.Hour
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// Config holds the signing parameters of a JWTTokenizer
type Config struct {
	Secret     []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Now overrides the clock, mostly for tests
	Now func() time.Time
}

// JWTTokenizer implements the Tokenizer interface using HS256 JWTs
type JWTTokenizer struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

var _ ports.Tokenizer = (*JWTTokenizer)(nil)

// NewJWTTokenizer creates a new JWT tokenizer
func NewJWTTokenizer(cfg Config) (*JWTTokenizer, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("jwt secret is required")
	}
	t := &JWTTokenizer{
		secret:     cfg.Secret,
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        cfg.Now,
	}
	if t.issuer == "" {
		t.issuer = DefaultIssuer
	}
	if t.accessTTL <= 0 {
		t.accessTTL = DefaultAccessTTL
	}
	if t.refreshTTL <= 0 {
		t.refreshTTL = DefaultRefreshTTL
	}
	if t.now == nil {
		t.now = time.Now
	}
	return t, nil
}

// IssueAccessToken mints an access token bound to userID and walletAddress
func (j *JWTTokenizer) IssueAccessToken(userID, walletAddress string) (string, time.Time, error) {
	claims := AccessClaims{
		RegisteredClaims: j.registered(userID, AudienceAccess, j.accessTTL),
		Kind:             core.TokenKindAccess,
		UserID:           userID,
		WalletAddress:    walletAddress,
	}

	signed, err := j.sign(claims)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, claims.ExpiresAt.Time, nil
}

// IssueRefreshToken mints a refresh token bound to userID
func (j *JWTTokenizer) IssueRefreshToken(userID string) (string, time.Time, error) {
	claims := RefreshClaims{
		RegisteredClaims: j.registered(userID, AudienceRefresh, j.refreshTTL),
		Kind:             core.TokenKindRefresh,
		UserID:           userID,
	}

	signed, err := j.sign(claims)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign refresh token: %w", err)
	}
	return signed, claims.ExpiresAt.Time, nil
}

// ParseAccessToken verifies an access token and returns its payload
func (j *JWTTokenizer) ParseAccessToken(tokenStr string) (*core.AccessPayload, error) {
	claims := &AccessClaims{}
	if err := j.parse(tokenStr, claims, AudienceAccess); err != nil {
		return nil, err
	}

	return &core.AccessPayload{
		ID:            claims.ID,
		UserID:        claims.UserID,
		WalletAddress: claims.WalletAddress,
		ExpiresAt:     claims.ExpiresAt.Time,
	}, nil
}

// ParseExpiredAccessToken verifies an access token like ParseAccessToken but
// accepts it after its expiry
func (j *JWTTokenizer) ParseExpiredAccessToken(tokenStr string) (*core.AccessPayload, error) {
	claims := &AccessClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return j.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidToken, err)
	}

	// the parser skipped every claim check, redo all but exp
	if claims.Issuer != j.issuer {
		return nil, fmt.Errorf("%w: unexpected issuer", core.ErrInvalidToken)
	}
	if !slices.Contains(claims.Audience, AudienceAccess) {
		return nil, fmt.Errorf("%w: unexpected audience", core.ErrInvalidToken)
	}
	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing exp", core.ErrInvalidToken)
	}
	if err := claims.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidToken, err)
	}

	return &core.AccessPayload{
		ID:            claims.ID,
		UserID:        claims.UserID,
		WalletAddress: claims.WalletAddress,
		ExpiresAt:     claims.ExpiresAt.Time,
	}, nil
}

// ParseRefreshToken verifies a refresh token and returns its payload
func (j *JWTTokenizer) ParseRefreshToken(tokenStr string) (*core.RefreshPayload, error) {
	claims := &RefreshClaims{}
	if err := j.parse(tokenStr, claims, AudienceRefresh); err != nil {
		return nil, err
	}

	return &core.RefreshPayload{
		ID:        claims.ID,
		UserID:    claims.UserID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (j *JWTTokenizer) registered(subject, audience string, ttl time.Duration) jwt.RegisteredClaims {
	now := j.now()
	return jwt.RegisteredClaims{
		Issuer:    j.issuer,
		Subject:   subject,
		Audience:  jwt.ClaimStrings{audience},
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		ID:        uuid.New().String(),
	}
}

func (j *JWTTokenizer) sign(claims jwt.Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
}

func (j *JWTTokenizer) parse(tokenStr string, claims jwt.Claims, audience string) error {
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return j.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithIssuer(j.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return core.ErrTokenExpired
		}
		return fmt.Errorf("%w: %v", core.ErrInvalidToken, err)
	}
	if !token.Valid {
		return core.ErrInvalidToken
	}
	return nil
}
