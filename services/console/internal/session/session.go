package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"adminconsole/pkg/domain"
	"adminconsole/pkg/store"
)

// Storage keys. The token is stored as a plain string, the profile as JSON.
const (
	TokenKey = "token"
	UserKey  = "user"
)

// ErrNotAuthenticated is returned by operations that need a signed-in session.
var ErrNotAuthenticated = errors.New("not authenticated")

// Snapshot is an immutable view of the session.
type Snapshot struct {
	Token   string       `json:"-"`
	Profile *domain.User `json:"user,omitempty"`
	Loading bool         `json:"loading"`
}

// Authenticated reports whether both token and profile are present.
func (s Snapshot) Authenticated() bool {
	return s.Token != "" && s.Profile != nil
}

// TokenChecker rejects persisted tokens that can no longer be used.
type TokenChecker interface {
	Check(token string) error
}

// Option configures a Store.
type Option func(*Store)

// WithExpiryCheck makes Initialize drop persisted tokens rejected by checker.
func WithExpiryCheck(checker TokenChecker) Option {
	return func(s *Store) { s.checker = checker }
}

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// Store owns the console session. It is the only component that touches the
// session keys in durable storage; everything else reads snapshots.
type Store struct {
	kv      store.KV
	checker TokenChecker
	logger  *slog.Logger

	// writeMu serializes state changes so subscribers see them in order.
	writeMu sync.Mutex

	mu      sync.RWMutex
	snap    Snapshot
	subs    map[int]func(Snapshot)
	nextSub int
}

// New creates a store in the loading state. Call Initialize to populate it.
func New(kv store.KV, opts ...Option) *Store {
	s := &Store{
		kv:     kv,
		logger: slog.Default(),
		snap:   Snapshot{Loading: true},
		subs:   make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize loads the persisted session. A missing or unreadable token or
// profile leaves the session signed out and purges both keys. It never fails.
func (s *Store) Initialize(ctx context.Context) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	token, profile, err := s.load(ctx)
	if err != nil {
		s.logger.Warn("session restore failed", "err", err)
		if err := s.kv.Delete(ctx, TokenKey, UserKey); err != nil {
			s.logger.Warn("session purge failed", "err", err)
		}
		s.publish(Snapshot{})
		return
	}
	if token == "" {
		s.publish(Snapshot{})
		return
	}
	s.logger.Info("session restored", "user_id", profile.ID)
	s.publish(Snapshot{Token: token, Profile: profile})
}

var errIncomplete = errors.New("persisted session incomplete")

func (s *Store) load(ctx context.Context) (string, *domain.User, error) {
	token, hasToken, err := s.kv.Get(ctx, TokenKey)
	if err != nil {
		return "", nil, fmt.Errorf("read token: %w", err)
	}
	raw, hasUser, err := s.kv.Get(ctx, UserKey)
	if err != nil {
		return "", nil, fmt.Errorf("read user: %w", err)
	}
	token = strings.TrimSpace(token)
	if !hasToken && !hasUser {
		return "", nil, nil
	}
	if token == "" || !hasUser {
		return "", nil, errIncomplete
	}
	var profile *domain.User
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		return "", nil, fmt.Errorf("parse user: %w", err)
	}
	if profile == nil {
		return "", nil, errIncomplete
	}
	if s.checker != nil {
		if err := s.checker.Check(token); err != nil {
			return "", nil, err
		}
	}
	return token, profile, nil
}

// Login persists token and profile and publishes the signed-in session. If
// either write fails the previously persisted values are restored and the
// published session is left as it was.
func (s *Store) Login(ctx context.Context, token string, profile domain.User) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("login token is empty")
	}
	encoded, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	prevToken, hadToken, _ := s.kv.Get(ctx, TokenKey)
	prevUser, hadUser, _ := s.kv.Get(ctx, UserKey)
	if err := s.kv.Set(ctx, TokenKey, token); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}
	if err := s.kv.Set(ctx, UserKey, string(encoded)); err != nil {
		s.restore(ctx, TokenKey, prevToken, hadToken)
		s.restore(ctx, UserKey, prevUser, hadUser)
		return fmt.Errorf("persist user: %w", err)
	}
	s.publish(Snapshot{Token: token, Profile: &profile})
	return nil
}

func (s *Store) restore(ctx context.Context, key, value string, present bool) {
	var err error
	if present {
		err = s.kv.Set(ctx, key, value)
	} else {
		err = s.kv.Delete(ctx, key)
	}
	if err != nil {
		s.logger.Warn("session rollback failed", "key", key, "err", err)
	}
}

// Logout publishes the signed-out session and purges the persisted keys.
func (s *Store) Logout(ctx context.Context) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.publish(Snapshot{})
	if err := s.kv.Delete(ctx, TokenKey, UserKey); err != nil {
		s.logger.Warn("session purge failed", "err", err)
	}
}

// UpdateProfile replaces the profile and re-persists it. The token is left
// untouched.
func (s *Store) UpdateProfile(ctx context.Context, profile domain.User) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	current := s.Snapshot()
	if current.Token == "" {
		return ErrNotAuthenticated
	}
	encoded, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	if err := s.kv.Set(ctx, UserKey, string(encoded)); err != nil {
		return fmt.Errorf("persist user: %w", err)
	}
	s.publish(Snapshot{Token: current.Token, Profile: &profile})
	return nil
}

// Snapshot returns the current session. The profile is a copy.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copySnapshot(s.snap)
}

func (s *Store) IsAuthenticated() bool { return s.Snapshot().Authenticated() }
func (s *Store) IsLoading() bool       { return s.Snapshot().Loading }

// Token returns the bearer token, or "" when signed out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Token
}

// Subscribe registers fn for every published change. fn runs synchronously
// and must not call Login, Logout or UpdateProfile.
func (s *Store) Subscribe(fn func(Snapshot)) (cancel func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) publish(next Snapshot) {
	s.mu.Lock()
	s.snap = next
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()
	for _, fn := range subs {
		fn(copySnapshot(next))
	}
}

func copySnapshot(s Snapshot) Snapshot {
	if s.Profile != nil {
		p := *s.Profile
		s.Profile = &p
	}
	return s
}
