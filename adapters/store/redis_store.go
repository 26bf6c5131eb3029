package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/layer-3/scryptex/core"
	"github.com/layer-3/scryptex/ports"
)

const (
	consumeMissing int64 = iota
	consumeOK
	consumeExpired
	consumeMismatch
)

// consumeScript compares and deletes in one step so a nonce is spent at most once.
// KEYS[1] = nonce key, ARGV = supplied nonce, now (ms), ttl (ms)
var consumeScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if not v then
	return 0
end
local sep = string.find(v, '|', 1, true)
if not sep then
	redis.call('DEL', KEYS[1])
	return 0
end
local nonce = string.sub(v, 1, sep - 1)
local issued = tonumber(string.sub(v, sep + 1))
if tonumber(ARGV[2]) - issued > tonumber(ARGV[3]) then
	redis.call('DEL', KEYS[1])
	return 2
end
if nonce ~= ARGV[1] then
	return 3
end
redis.call('DEL', KEYS[1])
return 1
`)

// RedisNonceStore is a Redis implementation of the NonceStore interface.
// Keys outlive the validity window by one extra window: an attempt up to two
// windows after issuance fails with core.ErrNonceExpired, right nonce or not.
// After that Redis has dropped the key and the attempt fails with
// core.ErrInvalidNonce, like a nonce that was never issued.
type RedisNonceStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

var _ ports.NonceStore = (*RedisNonceStore)(nil)

// NewRedisNonceStore creates a new Redis nonce store
func NewRedisNonceStore(client redis.UniversalClient, ttl time.Duration, now func() time.Time) *RedisNonceStore {
	if ttl <= 0 {
		ttl = DefaultNonceTTL
	}
	if now == nil {
		now = time.Now
	}
	return &RedisNonceStore{
		client: client,
		prefix: "scryptex:nonce:",
		ttl:    ttl,
		now:    now,
	}
}

// Issue stores a fresh nonce for address, overwriting any previous one
func (s *RedisNonceStore) Issue(ctx context.Context, address string) (*core.Challenge, error) {
	nonce, err := generateNonce()
	if err != nil {
		return nil, err
	}

	now := s.now()
	value := nonce + "|" + strconv.FormatInt(now.UnixMilli(), 10)
	if err := s.client.Set(ctx, s.prefix+address, value, 2*s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("failed to store nonce: %w", err)
	}

	return &core.Challenge{
		Address:   address,
		Nonce:     nonce,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}, nil
}

// Consume spends the nonce for address if it matches and is fresh
func (s *RedisNonceStore) Consume(ctx context.Context, address, nonce string) error {
	res, err := consumeScript.Run(ctx, s.client,
		[]string{s.prefix + address},
		nonce, s.now().UnixMilli(), s.ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return fmt.Errorf("failed to consume nonce: %w", err)
	}

	switch res {
	case consumeOK:
		return nil
	case consumeExpired:
		return core.ErrNonceExpired
	default:
		return core.ErrInvalidNonce
	}
}
