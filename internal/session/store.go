// Package session owns the authenticated-user record. It is the single
// source of truth for "is the user logged in"; everything else dispatches
// refresh/logout intents and reads the resulting snapshot.
package session

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/winningcv/authgate/internal/authapi"
	"github.com/winningcv/authgate/internal/config"
	"github.com/winningcv/authgate/internal/log"
	"github.com/winningcv/authgate/internal/token"
)

// Session is the authenticated identity as known to the client.
type Session struct {
	ID          string
	Email       string
	DisplayName string
	Provider    string
	IsVerified  bool
	AvatarURL   string
	IsStaff     bool
	IsSuperuser bool
}

// Snapshot is an atomic read of the store's state. Session is nil when
// unauthenticated; when non-nil it is always fully populated.
type Snapshot struct {
	Session *Session
	Loading bool
	Err     string
}

// IsAuthenticated reports whether the snapshot holds a session.
func (s Snapshot) IsAuthenticated() bool {
	return s.Session != nil
}

// API is the slice of the auth backend the store needs.
type API interface {
	VerifyToken(ctx context.Context, token string) (*authapi.Identity, error)
	Status(ctx context.Context) (*authapi.AuthStatus, error)
	RevokeToken(ctx context.Context, token string) error
	CookieLogout(ctx context.Context) error
}

// Listener is invoked after every state transition with the new snapshot.
type Listener func(Snapshot)

// Store coordinates session state between the token store and the backend.
type Store struct {
	api    API
	tokens token.Store

	mu        sync.RWMutex
	session   *Session
	loading   bool
	errMsg    string
	listeners []Listener

	// Coalesces concurrent refreshes: overlapping callers share one
	// backend round trip and observe the same resulting state.
	group singleflight.Group
}

// NewStore creates a session store. The initial state is loading so route
// guards hold until the first Refresh resolves.
func NewStore(api API, tokens token.Store) *Store {
	return &Store{
		api:     api,
		tokens:  tokens,
		loading: true,
	}
}

// OnChange registers a listener for state transitions.
func (s *Store) OnChange(fn Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Session: copySession(s.session), Loading: s.loading, Err: s.errMsg}
}

// IsAuthenticated reports whether a session is present.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session != nil
}

// Refresh re-derives the session from the backend: stored token first, then
// the cookie-session fallback. All failures resolve locally; the returned
// snapshot carries a non-fatal Err string instead.
func (s *Store) Refresh(ctx context.Context) Snapshot {
	s.setLoading(true)

	type outcome struct {
		session *Session
		errMsg  string
	}

	v, _, _ := s.group.Do("refresh", func() (any, error) {
		sess, errMsg := s.resolve(ctx)
		return outcome{session: sess, errMsg: errMsg}, nil
	})

	o := v.(outcome)
	s.apply(o.session, o.errMsg)
	return s.Snapshot()
}

// resolve performs the two-step identity check without touching store state,
// so the result can be applied atomically afterwards.
func (s *Store) resolve(ctx context.Context) (*Session, string) {
	stored, err := s.tokens.Token(ctx)
	if err == nil {
		identity, verr := s.api.VerifyToken(ctx, stored)
		switch {
		case verr == nil:
			return fromIdentity(identity), ""
		case errors.Is(verr, authapi.ErrUnauthorized), errors.Is(verr, authapi.ErrUpstream):
			// The credential is no longer good. Drop it and fall
			// through to the cookie check.
			log.LogDebug("Stored token rejected, removing: %v", verr)
			if cerr := s.tokens.ClearToken(ctx); cerr != nil {
				log.LogWarn("Failed to clear rejected token: %v", cerr)
			}
		default:
			return nil, "unable to verify session: " + verr.Error()
		}
	} else if !errors.Is(err, token.ErrNotFound) {
		log.LogWarn("Failed to read stored token: %v", err)
	}

	status, err := s.api.Status(ctx)
	if err != nil {
		return nil, "unable to verify session: " + err.Error()
	}
	if status.IsAuthenticated && status.User != nil {
		return fromIdentity(status.User), ""
	}
	return nil, ""
}

// Logout revokes credentials best-effort and always ends with no session
// and no stored token. A flaky network never blocks logout.
func (s *Store) Logout(ctx context.Context) Snapshot {
	s.setLoading(true)

	stored, err := s.tokens.Token(ctx)
	if err == nil {
		if rerr := s.api.RevokeToken(ctx, stored); rerr != nil {
			log.LogWarn("Token revocation failed during logout: %v", rerr)
		}
	}
	if cerr := s.tokens.ClearToken(ctx); cerr != nil {
		log.LogWarn("Failed to clear token during logout: %v", cerr)
	}

	if lerr := s.api.CookieLogout(ctx); lerr != nil {
		log.LogWarn("Cookie logout failed: %v", lerr)
	}

	s.apply(nil, "")
	return s.Snapshot()
}

func (s *Store) setLoading(loading bool) {
	s.mu.Lock()
	s.loading = loading
	listeners := append([]Listener(nil), s.listeners...)
	snap := Snapshot{Session: copySession(s.session), Loading: s.loading, Err: s.errMsg}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

// apply installs a resolved state as one write. Either the full session or
// nothing, never a partially populated record.
func (s *Store) apply(session *Session, errMsg string) {
	s.mu.Lock()
	s.session = session
	s.errMsg = errMsg
	s.loading = false
	listeners := append([]Listener(nil), s.listeners...)
	snap := Snapshot{Session: copySession(s.session), Loading: s.loading, Err: s.errMsg}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

func fromIdentity(identity *authapi.Identity) *Session {
	return &Session{
		ID:          strconv.FormatInt(identity.AuthUserID, 10),
		Email:       identity.Email,
		DisplayName: identity.DisplayName,
		Provider:    config.NormalizeProvider(identity.Provider),
		IsVerified:  identity.IsVerified,
		AvatarURL:   identity.AvatarURL,
		IsStaff:     identity.IsStaff,
		IsSuperuser: identity.IsSuperuser,
	}
}

func copySession(s *Session) *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
