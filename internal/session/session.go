package session

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/ieltslisten/learner/internal/storage"
)

const storageKey = "auth-storage"

// Claims mirrors the access token payload minted by the backend.
type Claims struct {
	UserID    int64  `json:"user_id"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

type Option func(*Store)

// WithPassphrase seals the persisted session; an empty passphrase is ignored.
func WithPassphrase(p string) Option {
	return func(s *Store) {
		if p != "" {
			s.sealer = &sealer{passphrase: []byte(p)}
		}
	}
}

// Store holds the signed-in identity and tokens and persists them to a KV.
// It satisfies client.TokenStore.
type Store struct {
	kv     storage.KV
	sealer *sealer

	mu      sync.RWMutex
	st      State
	onClear []func()
}

func New(kv storage.KV, opts ...Option) *Store {
	s := &Store{kv: kv}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Load restores the persisted session. A missing session is not an error.
func (s *Store) Load(ctx context.Context) error {
	raw, err := s.kv.Get(ctx, storageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return errors.Wrap(err, "failed to load session")
	}
	if s.sealer != nil {
		if raw, err = s.sealer.open(raw); err != nil {
			return err
		}
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return errors.Wrap(err, "failed to decode session")
	}
	s.mu.Lock()
	s.st = st
	s.mu.Unlock()
	return nil
}

func (s *Store) persist(ctx context.Context, st State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return errors.Wrap(err, "failed to encode session")
	}
	if s.sealer != nil {
		if raw, err = s.sealer.seal(raw); err != nil {
			return err
		}
	}
	return errors.Wrap(s.kv.Put(ctx, storageKey, raw), "failed to persist session")
}

func (s *Store) update(ctx context.Context, fn func(*State)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.st
	fn(&next)
	if err := s.persist(ctx, next); err != nil {
		return err
	}
	s.st = next
	return nil
}

func (s *Store) SetAuth(ctx context.Context, user *User, access, refresh string) error {
	return s.update(ctx, func(st *State) {
		st.User, st.AccessToken, st.RefreshToken = user, access, refresh
	})
}

func (s *Store) SetUser(ctx context.Context, user *User) error {
	return s.update(ctx, func(st *State) { st.User = user })
}

// SetTokens stores a refreshed access token. refresh is only replaced when the
// backend rotated it.
func (s *Store) SetTokens(ctx context.Context, access, refresh string) error {
	return s.update(ctx, func(st *State) {
		st.AccessToken = access
		if refresh != "" {
			st.RefreshToken = refresh
		}
	})
}

// Clear forgets the session both in memory and on disk, then runs the
// registered OnClear hooks.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.st = State{}
	hooks := append([]func(){}, s.onClear...)
	err := s.kv.Delete(ctx, storageKey)
	s.mu.Unlock()
	for _, h := range hooks {
		h()
	}
	return errors.Wrap(err, "failed to delete session")
}

// OnClear registers fn to run after every Clear, e.g. to drop cached queries.
func (s *Store) OnClear(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClear = append(s.onClear, fn)
}

func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.AccessToken
}

func (s *Store) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.RefreshToken
}

func (s *Store) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.User
}

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.AccessToken != "" || s.st.RefreshToken != ""
}

// Claims decodes the access token without verifying it; the signature is the
// backend's concern, the client only reads expiry and subject.
func (s *Store) Claims() (*Claims, error) {
	tok := s.AccessToken()
	if tok == "" {
		return nil, errors.New("no access token")
	}
	var c Claims
	if _, _, err := jwt.NewParser().ParseUnverified(tok, &c); err != nil {
		return nil, errors.Wrap(err, "failed to parse access token")
	}
	return &c, nil
}

// AccessExpiresIn reports how long the access token is still valid for.
// ok is false when the token is missing or has no exp claim.
func (s *Store) AccessExpiresIn(now time.Time) (d time.Duration, ok bool) {
	c, err := s.Claims()
	if err != nil || c.ExpiresAt == nil {
		return 0, false
	}
	return c.ExpiresAt.Sub(now), true
}
