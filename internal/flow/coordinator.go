// Package flow runs interactive provider logins: popup strategies per
// provider, a redirect fallback, and the exchange that turns a provider
// credential into a stored backend session token.
package flow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/winningcv/authgate/internal/authapi"
	"github.com/winningcv/authgate/internal/config"
	"github.com/winningcv/authgate/internal/log"
	"github.com/winningcv/authgate/internal/relay"
	"github.com/winningcv/authgate/internal/session"
	"github.com/winningcv/authgate/internal/token"
)

// State is a coordinator lifecycle phase, reported through Event.
type State string

const (
	StateIdle             State = "idle"
	StateStrategySelected State = "strategy_selected"
	StateAwaitingProvider State = "awaiting_provider"
	StateExchangingToken  State = "exchanging_token"
	StateCompleted        State = "completed"
	StateFailed           State = "failed"
	StateCancelled        State = "cancelled"
)

// Event is a lifecycle notification for one provider's login attempt.
type Event struct {
	Provider string
	State    State
	Err      string
}

// ErrLoginInProgress is returned when a login for the same provider is
// already running. One attempt per provider at a time.
var ErrLoginInProgress = errors.New("login already in progress")

// Backend is the slice of the auth API the coordinator needs.
type Backend interface {
	Exchange(ctx context.Context, provider string, credential authapi.Credential) (string, error)
	LoginURL(ctx context.Context, provider string) (string, error)
}

// Sessions is the session store surface the coordinator refreshes after a
// successful exchange.
type Sessions interface {
	Refresh(ctx context.Context) session.Snapshot
}

// Strategy acquires a provider credential interactively.
type Strategy interface {
	Name() string
	// Available reports whether the strategy is configured. Unavailable
	// strategies route to the redirect fallback, not to a failure.
	Available() bool
	Acquire(ctx context.Context) Result
}

// Coordinator owns login attempts end to end: strategy selection,
// credential acquisition, the one-shot backend exchange, and session
// refresh.
type Coordinator struct {
	cfg      *config.Config
	api      Backend
	sessions Sessions
	tokens   token.Store
	nav      Navigator

	strategies map[string]Strategy
	guard      exchangeGuard

	mu        sync.Mutex
	pending   map[string]bool
	listeners []func(Event)
}

// NewCoordinator wires the per-provider strategies from configuration. A
// nil googleSource disables the Google in-page strategy, which then falls
// back to redirect like any other unconfigured provider.
func NewCoordinator(cfg *config.Config, api Backend, sessions Sessions, tokens token.Store, nav Navigator, bus *relay.Bus, googleSource GoogleCredentialSource) *Coordinator {
	popupCallback := func(provider string) string {
		return cfg.PageOrigin + "/auth/popup/callback/" + provider
	}
	library := NewMicrosoftLibrary(cfg.Microsoft.TenantID)

	c := &Coordinator{
		cfg:      cfg,
		api:      api,
		sessions: sessions,
		tokens:   tokens,
		nav:      nav,
		pending:  make(map[string]bool),
	}
	c.strategies = map[string]Strategy{
		config.ProviderGoogle:    newGoogleStrategy(cfg.Google.ClientID, googleSource),
		config.ProviderMicrosoft: newMicrosoftStrategy(cfg.Microsoft.ClientID, library, nav, bus, popupCallback(config.ProviderMicrosoft), cfg.WatchdogInterval),
		config.ProviderGitHub:    newGitHubStrategy(cfg.GitHub.ClientID, nav, bus, popupCallback(config.ProviderGitHub), cfg.WatchdogInterval),
	}
	return c
}

// OnEvent registers a lifecycle listener.
func (c *Coordinator) OnEvent(fn func(Event)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

func (c *Coordinator) emit(ev Event) {
	c.mu.Lock()
	listeners := append([]func(Event){}, c.listeners...)
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(ev)
	}
}

// Login runs one login attempt for the provider. Cancellation (closed
// popup, declined consent, timeout) resolves silently with a nil error;
// returnPath is where a redirect-based login lands afterwards.
func (c *Coordinator) Login(ctx context.Context, provider, returnPath string) error {
	if !config.KnownProvider(provider) {
		return fmt.Errorf("unknown provider %q", provider)
	}

	c.mu.Lock()
	if c.pending[provider] {
		c.mu.Unlock()
		return ErrLoginInProgress
	}
	c.pending[provider] = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, provider)
		c.mu.Unlock()
	}()

	loginAttempts.WithLabelValues(provider).Inc()
	c.emit(Event{Provider: provider, State: StateStrategySelected})

	strat := c.strategies[provider]
	if strat == nil || !strat.Available() {
		log.LogInfoWithFields("flow", "Strategy unavailable, using redirect login", map[string]any{
			"provider": provider,
		})
		return c.redirect(ctx, provider, returnPath)
	}

	flowCtx, cancel := context.WithTimeout(ctx, c.cfg.FlowTimeout)
	defer cancel()

	c.emit(Event{Provider: provider, State: StateAwaitingProvider})
	res := strat.Acquire(flowCtx)

	switch {
	case res.IsCancelled():
		log.LogInfoWithFields("flow", "Login cancelled", map[string]any{"provider": provider})
		c.emit(Event{Provider: provider, State: StateCancelled})
		loginResults.WithLabelValues(provider, resultLabelCancelled).Inc()
		return nil
	case !res.IsOk():
		return c.fail(provider, res.Reason())
	}

	return c.complete(ctx, provider, res.Credential())
}

// complete exchanges the credential and applies the session. The guard
// makes the exchange one-shot per credential: a replayed code is dropped
// before it reaches the backend.
func (c *Coordinator) complete(ctx context.Context, provider string, cred authapi.Credential) error {
	if !c.guard.firstUse(provider, cred) {
		log.LogWarnWithFields("flow", "Duplicate credential ignored", map[string]any{
			"provider": provider,
		})
		return nil
	}

	c.emit(Event{Provider: provider, State: StateExchangingToken})

	key, err := c.api.Exchange(ctx, provider, cred)
	if err != nil {
		return c.fail(provider, err)
	}

	if err := c.tokens.SetToken(ctx, key); err != nil {
		return c.fail(provider, fmt.Errorf("failed to store session token: %w", err))
	}

	c.sessions.Refresh(ctx)

	c.emit(Event{Provider: provider, State: StateCompleted})
	loginResults.WithLabelValues(provider, resultLabelCompleted).Inc()
	return nil
}

// redirect is the whole-page fallback: remember where to land, resolve the
// provider's hosted login URL, and navigate. The callback surface finishes
// the session afterwards.
func (c *Coordinator) redirect(ctx context.Context, provider, returnPath string) error {
	if returnPath == "" {
		returnPath = c.cfg.LandingPath
	}
	if err := c.tokens.PutReturnPath(ctx, returnPath); err != nil {
		log.LogWarn("Failed to store return destination: %v", err)
	}

	loginURL, err := c.api.LoginURL(ctx, provider)
	if err != nil {
		return c.fail(provider, err)
	}
	if err := c.nav.Navigate(loginURL); err != nil {
		return c.fail(provider, err)
	}

	c.emit(Event{Provider: provider, State: StateAwaitingProvider})
	loginResults.WithLabelValues(provider, resultLabelRedirect).Inc()
	return nil
}

func (c *Coordinator) fail(provider string, cause error) error {
	msg := DisplayName(provider) + " authentication failed"
	log.LogErrorWithFields("flow", msg, map[string]any{
		"provider": provider,
		"error":    cause.Error(),
	})
	c.emit(Event{Provider: provider, State: StateFailed, Err: msg})
	loginResults.WithLabelValues(provider, resultLabelFailed).Inc()
	return fmt.Errorf("%s: %w", msg, cause)
}

// DisplayName is the user-facing provider name.
func DisplayName(provider string) string {
	switch provider {
	case config.ProviderGoogle:
		return "Google"
	case config.ProviderMicrosoft:
		return "Microsoft"
	case config.ProviderGitHub:
		return "GitHub"
	default:
		return provider
	}
}

// exchangeGuard remembers which credentials have been sent to the backend.
// Relay deduplication already drops most replays; this is the last line
// against exchanging one authorization code twice.
type exchangeGuard struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (g *exchangeGuard) firstUse(provider string, cred authapi.Credential) bool {
	key := provider + "\x00" + cred.Code + "\x00" + cred.AccessToken

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.seen == nil {
		g.seen = make(map[string]bool)
	}
	if g.seen[key] {
		return false
	}
	g.seen[key] = true
	return true
}
