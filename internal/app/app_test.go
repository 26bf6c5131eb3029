package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/scryptex/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.Server{Mode: "test"},
		Auth: config.Auth{
			Product:    "SCRYPTEX",
			JWTSecret:  "secret",
			AccessTTL:  time.Hour,
			RefreshTTL: time.Hour,
			NonceTTL:   time.Minute,
		},
		Store:  config.Store{Driver: "memory"},
		Nonce:  config.Nonce{Driver: "memory"},
		Events: config.Events{Topic: "scryptex.sessions"},
	}
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew_Memory(t *testing.T) {
	a, err := New(context.Background(), testConfig(), discard())
	require.NoError(t, err)
	defer a.Close()

	w := httptest.NewRecorder()
	a.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNew_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.Nonce.Driver = "redis"
	cfg.Events.Enabled = true
	cfg.Redis.URL = "redis://" + mr.Addr()

	a, err := New(context.Background(), cfg, discard())
	require.NoError(t, err)

	challenge, err := a.Auth.RequestChallenge(context.Background(), "0x00000000000000000000000000000000000000aa")
	require.NoError(t, err)
	assert.True(t, mr.Exists("scryptex:nonce:0x00000000000000000000000000000000000000aa"))
	assert.NotEmpty(t, challenge.Nonce)

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
}

func TestNew_EventsOnlyClosesCleanly(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.Events.Enabled = true
	cfg.Redis.URL = "redis://" + mr.Addr()

	a, err := New(context.Background(), cfg, discard())
	require.NoError(t, err)

	_, err = a.Auth.RequestChallenge(context.Background(), "0x00000000000000000000000000000000000000bb")
	require.NoError(t, err)
	assert.False(t, mr.Exists("scryptex:nonce:0x00000000000000000000000000000000000000bb"))

	require.NoError(t, a.Close())
}

func TestNew_RedisUnreachable(t *testing.T) {
	cfg := testConfig()
	cfg.Nonce.Driver = "redis"
	cfg.Redis.URL = "redis://127.0.0.1:1"

	_, err := New(context.Background(), cfg, discard())
	assert.Error(t, err)
}
