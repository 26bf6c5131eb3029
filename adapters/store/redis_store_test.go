package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/scryptex/core"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisNonceStore_ConsumeOnce(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	s := NewRedisNonceStore(client, 0, nil)

	ch, err := s.Issue(ctx, walletA)
	require.NoError(t, err)
	assert.True(t, mr.Exists("scryptex:nonce:"+walletA))
	assert.Equal(t, 2*DefaultNonceTTL, mr.TTL("scryptex:nonce:"+walletA))

	require.NoError(t, s.Consume(ctx, walletA, ch.Nonce))
	assert.False(t, mr.Exists("scryptex:nonce:"+walletA))
	assert.ErrorIs(t, s.Consume(ctx, walletA, ch.Nonce), core.ErrInvalidNonce)
}

func TestRedisNonceStore_MismatchKeepsChallenge(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)
	s := NewRedisNonceStore(client, 0, nil)

	ch, err := s.Issue(ctx, walletA)
	require.NoError(t, err)

	assert.ErrorIs(t, s.Consume(ctx, walletA, "wrong"), core.ErrInvalidNonce)
	require.NoError(t, s.Consume(ctx, walletA, ch.Nonce))
}

func TestRedisNonceStore_Expiry(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	clock := newFakeClock()
	s := NewRedisNonceStore(client, 0, clock.Now)

	ch, err := s.Issue(ctx, walletA)
	require.NoError(t, err)

	clock.Advance(DefaultNonceTTL + time.Second)
	assert.ErrorIs(t, s.Consume(ctx, walletA, ch.Nonce), core.ErrNonceExpired)
	assert.False(t, mr.Exists("scryptex:nonce:"+walletA))

	// within the grace window a wrong nonce is reported as expired too
	_, err = s.Issue(ctx, walletA)
	require.NoError(t, err)
	clock.Advance(DefaultNonceTTL + time.Minute)
	assert.ErrorIs(t, s.Consume(ctx, walletA, "wrong"), core.ErrNonceExpired)

	// once redis drops the key the challenge is simply unknown, even the right nonce
	ch, err = s.Issue(ctx, walletB)
	require.NoError(t, err)
	clock.Advance(2*DefaultNonceTTL + time.Second)
	mr.FastForward(2*DefaultNonceTTL + time.Second)
	assert.ErrorIs(t, s.Consume(ctx, walletB, ch.Nonce), core.ErrInvalidNonce)
}

func TestRedisNonceStore_ReissueInvalidatesPrevious(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)
	s := NewRedisNonceStore(client, 0, nil)

	first, err := s.Issue(ctx, walletA)
	require.NoError(t, err)
	second, err := s.Issue(ctx, walletA)
	require.NoError(t, err)

	assert.ErrorIs(t, s.Consume(ctx, walletA, first.Nonce), core.ErrInvalidNonce)
	require.NoError(t, s.Consume(ctx, walletA, second.Nonce))
}

func TestRedisNonceStore_StorageFailure(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	s := NewRedisNonceStore(client, 0, nil)
	mr.Close()

	_, err := s.Issue(ctx, walletA)
	assert.Error(t, err)
	err = s.Consume(ctx, walletA, "n")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrInvalidNonce)
}
