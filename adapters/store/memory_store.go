package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/scryptex/core"
	"github.com/layer-3/scryptex/ports"
)

type nonceEntry struct {
	nonce    string
	issuedAt time.Time
}

// MemoryNonceStore is an in-process implementation of the NonceStore interface.
// It only works for a single instance; use RedisNonceStore when scaling out.
type MemoryNonceStore struct {
	entries map[string]nonceEntry
	ttl     time.Duration
	now     func() time.Time
	mu      sync.Mutex
}

var _ ports.NonceStore = (*MemoryNonceStore)(nil)

// NewMemoryNonceStore creates a new in-memory nonce store
func NewMemoryNonceStore(ttl time.Duration, now func() time.Time) *MemoryNonceStore {
	if ttl <= 0 {
		ttl = DefaultNonceTTL
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryNonceStore{
		entries: make(map[string]nonceEntry),
		ttl:     ttl,
		now:     now,
	}
}

// Issue replaces any challenge for address and evicts every stale entry
func (s *MemoryNonceStore) Issue(ctx context.Context, address string) (*core.Challenge, error) {
	nonce, err := generateNonce()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for addr, entry := range s.entries {
		if now.Sub(entry.issuedAt) > s.ttl {
			delete(s.entries, addr)
		}
	}
	s.entries[address] = nonceEntry{nonce: nonce, issuedAt: now}

	return &core.Challenge{
		Address:   address,
		Nonce:     nonce,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}, nil
}

// Consume spends the challenge for address if nonce matches and is fresh
func (s *MemoryNonceStore) Consume(ctx context.Context, address, nonce string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[address]
	if !ok {
		return core.ErrInvalidNonce
	}
	if s.now().Sub(entry.issuedAt) > s.ttl {
		delete(s.entries, address)
		return core.ErrNonceExpired
	}
	if entry.nonce != nonce {
		return core.ErrInvalidNonce
	}

	delete(s.entries, address)
	return nil
}

// Len returns the number of stored challenges, live or stale
func (s *MemoryNonceStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
