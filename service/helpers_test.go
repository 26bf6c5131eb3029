package service

import (
	"crypto/ecdsa"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/scryptex/adapters/store"
	"github.com/layer-3/scryptex/adapters/tokenizer"
	"github.com/layer-3/scryptex/adapters/verifier"
	"github.com/layer-3/scryptex/core"
	"github.com/layer-3/scryptex/internal/eth"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	clock    *fakeClock
	users    *store.MemoryUserRepository
	sessions *store.MemorySessionRepository
	nonces   *store.MemoryNonceStore
	tokens   *tokenizer.JWTTokenizer
	manager  *SessionManager
	auth     *AuthService
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T, admins ...string) *harness {
	t.Helper()
	clock := &fakeClock{now: time.Now()}

	tokens, err := tokenizer.NewJWTTokenizer(tokenizer.Config{Secret: []byte("test-secret"), Now: clock.Now})
	require.NoError(t, err)

	h := &harness{
		clock:    clock,
		users:    store.NewMemoryUserRepository(),
		sessions: store.NewMemorySessionRepository(),
		nonces:   store.NewMemoryNonceStore(store.DefaultNonceTTL, clock.Now),
		tokens:   tokens,
	}
	h.manager = NewSessionManager(h.users, h.sessions, tokens, nil, discardLogger(), SessionManagerConfig{
		AdminAddresses: admins,
		Now:            clock.Now,
	})
	h.auth = NewAuthService(h.nonces, verifier.NewEthVerifier(), h.manager, h.users, discardLogger(), "")
	return h
}

type wallet struct {
	key     *ecdsa.PrivateKey
	address string
}

func newWallet(t *testing.T) wallet {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return wallet{key: key, address: eth.AddressOf(key)}
}

func (w wallet) sign(t *testing.T, nonce string) string {
	t.Helper()
	sig, err := eth.SignPersonal(w.key, core.ChallengeMessage(core.DefaultProduct, nonce))
	require.NoError(t, err)
	return sig
}
