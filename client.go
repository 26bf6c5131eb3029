package scryptex

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/layer-3/scryptex/internal/eth"
)

// HTTPClient talks to a scryptex server over its JSON API
type HTTPClient struct {
	Base string
	HTTP *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a client for the server at base
func NewHTTPClient(base string) *HTTPClient {
	return &HTTPClient{
		Base: strings.TrimRight(base, "/"),
		HTTP: http.DefaultClient,
	}
}

// Challenge requests a sign-in nonce for wallet
func (c *HTTPClient) Challenge(ctx context.Context, wallet string) (*Challenge, error) {
	var out Challenge
	err := c.do(ctx, http.MethodPost, "/auth/challenge", "", map[string]string{"walletAddress": wallet}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Verify submits a signed challenge and returns the new session tokens
func (c *HTTPClient) Verify(ctx context.Context, wallet, signature, nonce string) (*Login, error) {
	var out Login
	err := c.do(ctx, http.MethodPost, "/auth/verify", "", map[string]string{
		"walletAddress": wallet,
		"signature":     signature,
		"nonce":         nonce,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Authenticate runs the whole challenge, sign and verify round trip for signer
func (c *HTTPClient) Authenticate(ctx context.Context, signer Signer) (*Login, error) {
	challenge, err := c.Challenge(ctx, signer.Address())
	if err != nil {
		return nil, err
	}
	sig, err := signer.SignMessage(challenge.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to sign challenge: %w", err)
	}
	return c.Verify(ctx, signer.Address(), sig, challenge.Nonce)
}

// Refresh exchanges a refresh token for a new access token
func (c *HTTPClient) Refresh(ctx context.Context, refreshToken string) (*AccessToken, error) {
	var out AccessToken
	err := c.do(ctx, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": refreshToken}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout revokes the session behind accessToken
func (c *HTTPClient) Logout(ctx context.Context, accessToken string) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", accessToken, nil, nil)
}

// Me returns the user owning accessToken
func (c *HTTPClient) Me(ctx context.Context, accessToken string) (*User, error) {
	var out struct {
		User User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/me", accessToken, nil, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// UpdateProfile sets the non-nil profile fields of the caller
func (c *HTTPClient) UpdateProfile(ctx context.Context, accessToken string, email, username *string) (*User, error) {
	body := struct {
		Email    *string `json:"email,omitempty"`
		Username *string `json:"username,omitempty"`
	}{email, username}

	var out struct {
		User User `json:"user"`
	}
	if err := c.do(ctx, http.MethodPut, "/auth/profile", accessToken, body, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// Sessions lists the live sessions of the caller
func (c *HTTPClient) Sessions(ctx context.Context, accessToken string) ([]Session, error) {
	var out struct {
		Sessions []Session `json:"sessions"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/sessions", accessToken, nil, &out); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

// Status reports whether accessToken is accepted. An empty token asks anonymously.
func (c *HTTPClient) Status(ctx context.Context, accessToken string) (*Status, error) {
	var out Status
	if err := c.do(ctx, http.MethodGet, "/auth/status", accessToken, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RevokeUserSessions revokes every session of userID and returns how many were live
func (c *HTTPClient) RevokeUserSessions(ctx context.Context, accessToken, userID string) (int64, error) {
	var out struct {
		Revoked int64 `json:"revoked"`
	}
	path := "/admin/users/" + url.PathEscape(userID) + "/revoke-sessions"
	if err := c.do(ctx, http.MethodPost, path, accessToken, nil, &out); err != nil {
		return 0, err
	}
	return out.Revoked, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.Base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, req.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var envelope struct {
			Error *APIError `json:"error"`
		}
		envelope.Error = apiErr
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil || apiErr.Code == "" {
			apiErr.Code = "HTTP_ERROR"
			apiErr.Message = resp.Status
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, req.URL, err)
	}
	return nil
}

// KeySigner signs challenges with an in-memory secp256k1 key
type KeySigner struct {
	key *ecdsa.PrivateKey
}

// NewKeySigner wraps key
func NewKeySigner(key *ecdsa.PrivateKey) *KeySigner {
	return &KeySigner{key: key}
}

// Address returns the lowercase wallet address of the key
func (s *KeySigner) Address() string {
	return eth.AddressOf(s.key)
}

// SignMessage returns the 0x-prefixed personal_sign signature of message
func (s *KeySigner) SignMessage(message string) (string, error) {
	return eth.SignPersonal(s.key, message)
}
