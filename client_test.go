package scryptex

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/scryptex/adapters/store"
	"github.com/layer-3/scryptex/adapters/tokenizer"
	"github.com/layer-3/scryptex/adapters/verifier"
	"github.com/layer-3/scryptex/service"
	transport "github.com/layer-3/scryptex/transport/http"
)

func newTestClient(t *testing.T, admins ...string) *HTTPClient {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tokens, err := tokenizer.NewJWTTokenizer(tokenizer.Config{Secret: []byte("client-secret")})
	require.NoError(t, err)

	users := store.NewMemoryUserRepository()
	manager := service.NewSessionManager(users, store.NewMemorySessionRepository(), tokens, nil, logger,
		service.SessionManagerConfig{AdminAddresses: admins})
	auth := service.NewAuthService(store.NewMemoryNonceStore(store.DefaultNonceTTL, nil), verifier.NewEthVerifier(), manager, users, logger, "")

	srv := httptest.NewServer(transport.SetupRouter(auth, logger))
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL + "/")
}

func newSigner(t *testing.T) *KeySigner {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return NewKeySigner(key)
}

func TestClient_FirstLoginCreatesUser(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)
	signer := newSigner(t)

	challenge, err := c.Challenge(ctx, signer.Address())
	require.NoError(t, err)
	assert.Equal(t, "Sign this message to authenticate with SCRYPTEX: "+challenge.Nonce, challenge.Message)

	sig, err := signer.SignMessage(challenge.Message)
	require.NoError(t, err)
	login, err := c.Verify(ctx, signer.Address(), sig, challenge.Nonce)
	require.NoError(t, err)

	assert.True(t, login.IsNewUser)
	assert.NotEmpty(t, login.AccessToken.AccessToken)
	assert.NotEmpty(t, login.RefreshToken)
	assert.Equal(t, signer.Address(), login.User.WalletAddress)

	sessions, err := c.Sessions(ctx, login.AccessToken.AccessToken)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.True(t, sessions[0].Current)

	again, err := c.Authenticate(ctx, signer)
	require.NoError(t, err)
	assert.False(t, again.IsNewUser)
	assert.Equal(t, login.User.ID, again.User.ID)
}

func TestClient_SecondChallengeSupersedesFirst(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)
	signer := newSigner(t)

	first, err := c.Challenge(ctx, signer.Address())
	require.NoError(t, err)
	second, err := c.Challenge(ctx, signer.Address())
	require.NoError(t, err)

	sig, err := signer.SignMessage(first.Message)
	require.NoError(t, err)
	_, err = c.Verify(ctx, signer.Address(), sig, first.Nonce)
	assert.ErrorIs(t, err, ErrInvalidNonce)

	sig, err = signer.SignMessage(second.Message)
	require.NoError(t, err)
	_, err = c.Verify(ctx, signer.Address(), sig, second.Nonce)
	require.NoError(t, err)

	// spent
	_, err = c.Verify(ctx, signer.Address(), sig, second.Nonce)
	assert.ErrorIs(t, err, ErrInvalidNonce)
}

func TestClient_RevokedTokenRejected(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	login, err := c.Authenticate(ctx, newSigner(t))
	require.NoError(t, err)
	token := login.AccessToken.AccessToken

	_, err = c.Me(ctx, token)
	require.NoError(t, err)

	require.NoError(t, c.Logout(ctx, token))

	_, err = c.Me(ctx, token)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.ErrorIs(t, err, ErrUnauthorized)

	status, err := c.Status(ctx, token)
	require.NoError(t, err)
	assert.False(t, status.Authenticated)

	_, err = c.Refresh(ctx, login.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestClient_RefreshAndProfile(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	login, err := c.Authenticate(ctx, newSigner(t))
	require.NoError(t, err)

	refreshed, err := c.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "Bearer", refreshed.TokenType)

	name := "satoshi"
	user, err := c.UpdateProfile(ctx, refreshed.AccessToken, nil, &name)
	require.NoError(t, err)
	require.NotNil(t, user.Username)
	assert.Equal(t, name, *user.Username)

	bad := "x"
	_, err = c.UpdateProfile(ctx, refreshed.AccessToken, nil, &bad)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "username", apiErr.Field)
}

func TestClient_AdminRevoke(t *testing.T) {
	ctx := context.Background()
	admin := newSigner(t)
	c := newTestClient(t, admin.Address())

	target, err := c.Authenticate(ctx, newSigner(t))
	require.NoError(t, err)
	_, err = c.Authenticate(ctx, newSigner(t))
	require.NoError(t, err)

	_, err = c.RevokeUserSessions(ctx, target.AccessToken.AccessToken, target.User.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	adminLogin, err := c.Authenticate(ctx, admin)
	require.NoError(t, err)
	n, err := c.RevokeUserSessions(ctx, adminLogin.AccessToken.AccessToken, target.User.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = c.Me(ctx, target.AccessToken.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestClient_BadSignature(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)
	signer := newSigner(t)

	challenge, err := c.Challenge(ctx, signer.Address())
	require.NoError(t, err)
	sig, err := newSigner(t).SignMessage(challenge.Message)
	require.NoError(t, err)

	_, err = c.Verify(ctx, signer.Address(), sig, challenge.Nonce)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestAPIError_UnknownBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL).Me(context.Background(), "t")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "HTTP_ERROR", apiErr.Code)
	assert.Nil(t, apiErr.Unwrap())
}
