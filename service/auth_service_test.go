package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/scryptex/adapters/store"
	"github.com/layer-3/scryptex/adapters/verifier"
	"github.com/layer-3/scryptex/core"
	"github.com/layer-3/scryptex/ports/mocks"
)

func TestAuthService_FirstLoginCreatesUser(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	w := newWallet(t)

	// mixed-case input is normalized
	ch, err := h.auth.RequestChallenge(ctx, "0x"+strings.ToUpper(w.address[2:]))
	require.NoError(t, err)
	assert.Equal(t, w.address, ch.Address)
	assert.Equal(t, "Sign this message to authenticate with SCRYPTEX: "+ch.Nonce, ch.Message)

	meta := core.ClientMeta{IPAddress: "203.0.113.7", UserAgent: "wallet/1.0"}
	res, err := h.auth.VerifyAndAuthenticate(ctx, w.address, w.sign(t, ch.Nonce), ch.Nonce, meta)
	require.NoError(t, err)

	assert.Equal(t, core.NewUser, res.Outcome)
	assert.Equal(t, w.address, res.User.WalletAddress)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)

	session, err := h.manager.GetActiveSession(ctx, res.AccessToken)
	require.NoError(t, err)
	assert.True(t, session.IsActive)
	assert.Equal(t, res.User.ID, session.UserID)
	assert.Equal(t, "203.0.113.7", session.IPAddress)
	assert.Equal(t, "wallet/1.0", session.UserAgent)
}

func TestAuthService_SecondLoginIsExistingUser(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	w := newWallet(t)

	login := func() *core.AuthResult {
		ch, err := h.auth.RequestChallenge(ctx, w.address)
		require.NoError(t, err)
		res, err := h.auth.VerifyAndAuthenticate(ctx, w.address, w.sign(t, ch.Nonce), ch.Nonce, core.ClientMeta{})
		require.NoError(t, err)
		return res
	}

	first := login()
	second := login()
	assert.Equal(t, core.NewUser, first.Outcome)
	assert.Equal(t, core.ExistingUser, second.Outcome)
	assert.Equal(t, first.User.ID, second.User.ID)
	assert.NotEqual(t, first.Session.ID, second.Session.ID)

	// both devices stay logged in
	_, err := h.manager.GetActiveSession(ctx, first.AccessToken)
	require.NoError(t, err)
	_, err = h.manager.GetActiveSession(ctx, second.AccessToken)
	require.NoError(t, err)
}

func TestAuthService_NonceSpentOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	w := newWallet(t)

	ch, err := h.auth.RequestChallenge(ctx, w.address)
	require.NoError(t, err)
	sig := w.sign(t, ch.Nonce)

	_, err = h.auth.VerifyAndAuthenticate(ctx, w.address, sig, ch.Nonce, core.ClientMeta{})
	require.NoError(t, err)

	_, err = h.auth.VerifyAndAuthenticate(ctx, w.address, sig, ch.Nonce, core.ClientMeta{})
	assert.ErrorIs(t, err, core.ErrInvalidNonce)
}

func TestAuthService_ExpiredNonce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	w := newWallet(t)

	ch, err := h.auth.RequestChallenge(ctx, w.address)
	require.NoError(t, err)
	h.clock.Advance(5*time.Minute + time.Second)

	_, err = h.auth.VerifyAndAuthenticate(ctx, w.address, w.sign(t, ch.Nonce), ch.Nonce, core.ClientMeta{})
	assert.ErrorIs(t, err, core.ErrNonceExpired)
}

func TestAuthService_SecondChallengeSupersedesFirst(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	w := newWallet(t)

	first, err := h.auth.RequestChallenge(ctx, w.address)
	require.NoError(t, err)
	second, err := h.auth.RequestChallenge(ctx, w.address)
	require.NoError(t, err)

	_, err = h.auth.VerifyAndAuthenticate(ctx, w.address, w.sign(t, first.Nonce), first.Nonce, core.ClientMeta{})
	assert.ErrorIs(t, err, core.ErrInvalidNonce)

	_, err = h.auth.VerifyAndAuthenticate(ctx, w.address, w.sign(t, second.Nonce), second.Nonce, core.ClientMeta{})
	require.NoError(t, err)
}

func TestAuthService_BadSignatures(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	w := newWallet(t)
	other := newWallet(t)

	t.Run("signed by another wallet", func(t *testing.T) {
		ch, err := h.auth.RequestChallenge(ctx, w.address)
		require.NoError(t, err)
		_, err = h.auth.VerifyAndAuthenticate(ctx, w.address, other.sign(t, ch.Nonce), ch.Nonce, core.ClientMeta{})
		assert.ErrorIs(t, err, core.ErrInvalidSignature)
	})

	t.Run("malformed signature", func(t *testing.T) {
		ch, err := h.auth.RequestChallenge(ctx, w.address)
		require.NoError(t, err)
		_, err = h.auth.VerifyAndAuthenticate(ctx, w.address, "0xdeadbeef", ch.Nonce, core.ClientMeta{})
		assert.ErrorIs(t, err, core.ErrSignatureVerificationFailed)
	})

	_, err := h.users.FindByWallet(ctx, w.address)
	assert.ErrorIs(t, err, core.ErrUserNotFound)
}

func TestAuthService_NonceCheckedBeforeSignature(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	nonces := mocks.NewMockNonceStore(ctrl)
	h := newHarness(t)
	w := newWallet(t)

	auth := NewAuthService(nonces, verifier.NewEthVerifier(), h.manager, h.users, discardLogger(), "")
	nonces.EXPECT().Consume(gomock.Any(), w.address, "stale").Return(core.ErrNonceExpired)

	// the signature is valid, the nonce is not
	_, err := auth.VerifyAndAuthenticate(ctx, w.address, w.sign(t, "stale"), "stale", core.ClientMeta{})
	assert.ErrorIs(t, err, core.ErrNonceExpired)
}

func TestAuthService_NonceStoreFailure(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	nonces := mocks.NewMockNonceStore(ctrl)
	h := newHarness(t)
	w := newWallet(t)

	auth := NewAuthService(nonces, verifier.NewEthVerifier(), h.manager, h.users, discardLogger(), "")
	boom := errors.New("redis down")
	nonces.EXPECT().Issue(gomock.Any(), w.address).Return(nil, boom)
	nonces.EXPECT().Consume(gomock.Any(), w.address, "n").Return(boom)

	_, err := auth.RequestChallenge(ctx, w.address)
	assert.ErrorIs(t, err, boom)

	_, err = auth.VerifyAndAuthenticate(ctx, w.address, w.sign(t, "n"), "n", core.ClientMeta{})
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, core.ErrInvalidNonce)
}

func TestAuthService_Validation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	w := newWallet(t)

	var verr *core.ValidationError

	_, err := h.auth.RequestChallenge(ctx, "not-an-address")
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "walletAddress", verr.Field)

	_, err = h.auth.VerifyAndAuthenticate(ctx, w.address, "", "n", core.ClientMeta{})
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "signature", verr.Field)

	_, err = h.auth.VerifyAndAuthenticate(ctx, w.address, "0x00", "", core.ClientMeta{})
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "nonce", verr.Field)
}

func TestAuthService_CustomProduct(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	w := newWallet(t)
	auth := NewAuthService(store.NewMemoryNonceStore(0, nil), verifier.NewEthVerifier(), h.manager, h.users, discardLogger(), "ACME")

	ch, err := auth.RequestChallenge(ctx, w.address)
	require.NoError(t, err)
	assert.Equal(t, "Sign this message to authenticate with ACME: "+ch.Nonce, ch.Message)

	// a signature over the default product message does not match
	_, err = auth.VerifyAndAuthenticate(ctx, w.address, w.sign(t, ch.Nonce), ch.Nonce, core.ClientMeta{})
	assert.ErrorIs(t, err, core.ErrInvalidSignature)
}

func TestAuthService_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	w := newWallet(t)

	res, err := h.manager.Authenticate(ctx, w.address, core.ClientMeta{})
	require.NoError(t, err)

	email := " trader@scryptex.io "
	name := "whale_01"
	user, err := h.auth.UpdateProfile(ctx, res.User.ID, &email, &name)
	require.NoError(t, err)
	assert.Equal(t, "trader@scryptex.io", *user.Email)
	assert.Equal(t, "whale_01", *user.Username)
	assert.Equal(t, w.address, user.WalletAddress)

	bad := "nope"
	var verr *core.ValidationError
	_, err = h.auth.UpdateProfile(ctx, res.User.ID, &bad, nil)
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "email", verr.Field)

	short := "ab"
	_, err = h.auth.UpdateProfile(ctx, res.User.ID, nil, &short)
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "username", verr.Field)

	unchanged, err := h.auth.UpdateProfile(ctx, res.User.ID, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "whale_01", *unchanged.Username)
}
