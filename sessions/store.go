package sessions

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/zhancare-client/internal/errors"
	"github.com/jrsteele09/zhancare-client/users"
)

// Store owns the authentication state of the client and its persisted credentials.
//
// Only Login, Logout, ForceLogout and UpdateAccessToken write to Storage. The in-memory
// copy is authoritative for the running process; Storage is what survives a restart.
type Store struct {
	storage    Storage
	logger     zerolog.Logger
	minRestore time.Duration
	nowFunc    func() time.Time

	// writeMu orders credential transitions so memory and Storage change together.
	writeMu sync.Mutex

	mu            sync.RWMutex
	authenticated bool
	user          *users.User
	token         *oauth2.Token

	ready     chan struct{}
	readyOnce sync.Once

	subsMu    sync.Mutex
	subs      map[uint64]Listener
	nextSubID uint64
}

type StoreOption func(*Store)

func WithLogger(l zerolog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = l
	}
}

// WithMinRestoreDuration keeps Restore from completing faster than d, so a loading
// screen is shown for a stable amount of time.
func WithMinRestoreDuration(d time.Duration) StoreOption {
	return func(s *Store) {
		s.minRestore = d
	}
}

func WithNowFunc(f func() time.Time) StoreOption {
	return func(s *Store) {
		s.nowFunc = f
	}
}

func NewStore(storage Storage, opts ...StoreOption) (*Store, error) {
	if storage == nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "[sessions.NewStore] storage is required")
	}
	s := &Store{
		storage: storage,
		logger:  zerolog.Nop(),
		nowFunc: time.Now,
		ready:   make(chan struct{}),
		subs:    make(map[uint64]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Restore loads persisted credentials once at start-up. Missing, partial or corrupt
// state leaves the session unauthenticated; storage failures are logged, not returned.
// The only error is ctx cancellation while waiting out the minimum restore duration.
func (s *Store) Restore(ctx context.Context) error {
	defer s.markReady()
	start := s.nowFunc()

	s.writeMu.Lock()
	user, tok := s.load(ctx)
	s.mu.Lock()
	s.authenticated = user != nil
	s.user = user
	s.token = tok
	s.mu.Unlock()
	s.writeMu.Unlock()

	if err := s.waitMinRestore(ctx, start); err != nil {
		return err
	}

	s.notify(Event{Kind: EventRestored, Authenticated: user != nil, User: copyUser(user)})
	return nil
}

func (s *Store) load(ctx context.Context) (*users.User, *oauth2.Token) {
	values, err := s.storage.MultiGet(ctx, CredentialKeys...)
	if err != nil {
		s.logger.Warn().Err(err).Msg("session restore: storage read failed")
		return nil, nil
	}

	access, refresh, rawUser := values[KeyAccessToken], values[KeyRefreshToken], values[KeyUser]
	if access == "" || refresh == "" || rawUser == "" {
		if len(values) > 0 {
			s.logger.Info().Int("keys", len(values)).Msg("session restore: partial credentials ignored")
		}
		return nil, nil
	}

	var user users.User
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil || user.ID == "" {
		s.logger.Warn().Err(err).Msg("session restore: stored user is corrupt")
		return nil, nil
	}

	s.logger.Debug().Str("user_id", user.ID.String()).Msg("session restored")
	return &user, &oauth2.Token{AccessToken: access, RefreshToken: refresh}
}

func (s *Store) waitMinRestore(ctx context.Context, start time.Time) error {
	remaining := s.minRestore - s.nowFunc().Sub(start)
	if remaining <= 0 {
		return nil
	}
	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) markReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}

// Ready is closed once Restore has finished.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// Login records the authenticated user and persists all credentials in one atomic write.
// A storage failure is logged; the in-memory session is still established.
func (s *Store) Login(ctx context.Context, user *users.User, tok *oauth2.Token) error {
	if user == nil || user.ID == "" {
		return errors.Wrapf(errors.ErrInvalidCredentials, "[Store.Login] user id is required")
	}
	if tok == nil || tok.AccessToken == "" || tok.RefreshToken == "" {
		return errors.Wrapf(errors.ErrInvalidCredentials, "[Store.Login] access and refresh tokens are required")
	}
	rawUser, err := json.Marshal(user)
	if err != nil {
		return errors.Wrapf(err, "[Store.Login] encode user")
	}

	u := copyUser(user)
	s.writeMu.Lock()
	s.mu.Lock()
	s.authenticated = true
	s.user = u
	s.token = &oauth2.Token{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken, TokenType: tok.TokenType}
	s.mu.Unlock()

	if err := s.storage.MultiSet(ctx, map[string]string{
		KeyAccessToken:  tok.AccessToken,
		KeyRefreshToken: tok.RefreshToken,
		KeyUser:         string(rawUser),
	}); err != nil {
		s.logger.Error().Err(err).Str("user_id", u.ID.String()).Msg("login: failed to persist credentials")
	}
	s.writeMu.Unlock()

	s.notify(Event{Kind: EventLogin, Authenticated: true, User: copyUser(u)})
	return nil
}

// Logout clears the session. Calling it when already logged out is a no-op apart from
// clearing any stray persisted keys.
func (s *Store) Logout(ctx context.Context) error {
	if s.clear(ctx, "logout") {
		s.notify(Event{Kind: EventLogout})
	}
	return nil
}

// ForceLogout tears the session down because the backend no longer accepts it.
// Subscribers always receive EventForcedLogout with the reason.
func (s *Store) ForceLogout(ctx context.Context, reason string) {
	s.clear(ctx, "forced logout")
	s.logger.Warn().Str("reason", reason).Msg("session force logged out")
	s.notify(Event{Kind: EventForcedLogout, Reason: reason})
}

func (s *Store) clear(ctx context.Context, op string) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	changed := s.authenticated || s.token != nil
	s.authenticated = false
	s.user = nil
	s.token = nil
	s.mu.Unlock()

	if err := s.storage.MultiRemove(ctx, CredentialKeys...); err != nil {
		s.logger.Error().Err(err).Str("op", op).Msg("failed to remove persisted credentials")
	}
	return changed
}

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

// User returns a copy of the current user, or nil.
func (s *Store) User() *users.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyUser(s.user)
}

// Token returns a copy of the current credentials.
func (s *Store) Token() (*oauth2.Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == nil {
		return nil, false
	}
	t := *s.token
	return &t, true
}

// UpdateAccessToken stores an access token obtained with refreshToken. It fails with
// ErrNotAuthenticated if the session was torn down while the refresh was in flight,
// and with ErrSessionChanged if another login replaced it.
func (s *Store) UpdateAccessToken(ctx context.Context, refreshToken, accessToken string) error {
	if accessToken == "" {
		return errors.Wrapf(errors.ErrInvalidToken, "[Store.UpdateAccessToken] empty access token")
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	switch {
	case s.token == nil:
		s.mu.Unlock()
		return errors.ErrNotAuthenticated
	case s.token.RefreshToken != refreshToken:
		s.mu.Unlock()
		return errors.Wrapf(errors.ErrSessionChanged, "[Store.UpdateAccessToken] refresh token no longer current")
	}
	s.token.AccessToken = accessToken
	s.mu.Unlock()

	if err := s.storage.MultiSet(ctx, map[string]string{KeyAccessToken: accessToken}); err != nil {
		s.logger.Error().Err(err).Msg("refresh: failed to persist access token")
	}
	return nil
}

// Subscribe registers l for session events and returns a function that removes it.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.subsMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = l
	s.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.subs, id)
			s.subsMu.Unlock()
		})
	}
}

func (s *Store) notify(e Event) {
	e.At = s.nowFunc()

	s.subsMu.Lock()
	listeners := make([]Listener, 0, len(s.subs))
	for _, l := range s.subs {
		listeners = append(listeners, l)
	}
	s.subsMu.Unlock()

	for _, l := range listeners {
		l(e)
	}
}

func copyUser(u *users.User) *users.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
