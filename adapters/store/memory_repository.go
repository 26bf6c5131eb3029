package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/layer-3/scryptex/core"
	"github.com/layer-3/scryptex/ports"
)

// MemoryUserRepository keeps users in process memory
type MemoryUserRepository struct {
	byID     map[string]*core.User
	byWallet map[string]string
	mu       sync.RWMutex
}

var _ ports.UserRepository = (*MemoryUserRepository)(nil)

// NewMemoryUserRepository creates an empty in-memory user repository
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:     make(map[string]*core.User),
		byWallet: make(map[string]string),
	}
}

// Create assigns an ID and stores user. A known wallet yields core.ErrUserExists.
func (r *MemoryUserRepository) Create(ctx context.Context, user *core.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byWallet[user.WalletAddress]; exists {
		return core.ErrUserExists
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = user.CreatedAt
	if user.Role == "" {
		user.Role = core.RoleUser
	}

	stored := *user
	r.byID[user.ID] = &stored
	r.byWallet[user.WalletAddress] = user.ID
	return nil
}

// FindByID returns a copy of the user with id
func (r *MemoryUserRepository) FindByID(ctx context.Context, id string) (*core.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, core.ErrUserNotFound
	}
	out := *u
	return &out, nil
}

// FindByWallet returns a copy of the user owning address
func (r *MemoryUserRepository) FindByWallet(ctx context.Context, address string) (*core.User, error) {
	r.mu.RLock()
	id, ok := r.byWallet[address]
	r.mu.RUnlock()
	if !ok {
		return nil, core.ErrUserNotFound
	}
	return r.FindByID(ctx, id)
}

// UpdateProfile sets the non-nil fields and returns the updated user
func (r *MemoryUserRepository) UpdateProfile(ctx context.Context, id string, email, username *string) (*core.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, core.ErrUserNotFound
	}
	if email != nil {
		v := *email
		u.Email = &v
	}
	if username != nil {
		v := *username
		u.Username = &v
	}
	u.UpdatedAt = time.Now()

	out := *u
	return &out, nil
}

// SetRole changes the role of the user owning address
func (r *MemoryUserRepository) SetRole(ctx context.Context, address string, role core.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byWallet[address]
	if !ok {
		return core.ErrUserNotFound
	}
	r.byID[id].Role = role
	r.byID[id].UpdatedAt = time.Now()
	return nil
}

// MemorySessionRepository keeps sessions in process memory
type MemorySessionRepository struct {
	sessions map[string]*core.Session
	mu       sync.RWMutex
}

var _ ports.SessionRepository = (*MemorySessionRepository)(nil)

// NewMemorySessionRepository creates an empty in-memory session repository
func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{
		sessions: make(map[string]*core.Session),
	}
}

// Create assigns an ID and stores session
func (r *MemorySessionRepository) Create(ctx context.Context, session *core.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	session.UpdatedAt = session.CreatedAt

	stored := *session
	r.sessions[session.ID] = &stored
	return nil
}

// FindByAccessTokenHash returns the session currently bound to hash, active or not
func (r *MemorySessionRepository) FindByAccessTokenHash(ctx context.Context, hash string) (*core.Session, error) {
	return r.find(func(s *core.Session) bool { return s.AccessTokenHash == hash })
}

// FindActiveByRefreshTokenHash returns the active session issued with hash
func (r *MemorySessionRepository) FindActiveByRefreshTokenHash(ctx context.Context, hash string) (*core.Session, error) {
	return r.find(func(s *core.Session) bool { return s.IsActive && s.RefreshTokenHash == hash })
}

// UpdateAccessToken rebinds an active session to a new access token
func (r *MemorySessionRepository) UpdateAccessToken(ctx context.Context, id, hash string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok || !s.IsActive {
		return core.ErrSessionNotFound
	}
	s.AccessTokenHash = hash
	s.ExpiresAt = expiresAt
	s.UpdatedAt = time.Now()
	return nil
}

// RevokeByAccessTokenHash deactivates the sessions of userID bound to hash
func (r *MemorySessionRepository) RevokeByAccessTokenHash(ctx context.Context, hash, userID string) (int64, error) {
	return r.revoke(func(s *core.Session) bool { return s.AccessTokenHash == hash && s.UserID == userID })
}

// RevokeAllForUser deactivates every active session of userID
func (r *MemorySessionRepository) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	return r.revoke(func(s *core.Session) bool { return s.UserID == userID })
}

// ListActiveByUser returns the sessions of userID usable at now, newest first
func (r *MemorySessionRepository) ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]*core.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*core.Session
	for _, s := range r.sessions {
		if s.UserID == userID && s.Usable(now) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemorySessionRepository) find(match func(*core.Session) bool) (*core.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.sessions {
		if match(s) {
			cp := *s
			return &cp, nil
		}
	}
	return nil, core.ErrSessionNotFound
}

func (r *MemorySessionRepository) revoke(match func(*core.Session) bool) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	now := time.Now()
	for _, s := range r.sessions {
		if s.IsActive && match(s) {
			s.IsActive = false
			s.UpdatedAt = now
			n++
		}
	}
	return n, nil
}
