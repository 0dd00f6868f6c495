// Package callback is the loopback HTTP surface the hosted login flows
// return to: the redirect-flow callback page and the popup sub-callback
// that relays provider results to the waiting flow.
package callback

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/winningcv/authgate/internal/config"
	"github.com/winningcv/authgate/internal/flow"
	"github.com/winningcv/authgate/internal/json"
	"github.com/winningcv/authgate/internal/log"
	"github.com/winningcv/authgate/internal/relay"
	"github.com/winningcv/authgate/internal/session"
	"github.com/winningcv/authgate/internal/token"
)

// Sessions is the session surface the callback page drives.
type Sessions interface {
	Refresh(ctx context.Context) session.Snapshot
}

// Server hosts the callback pages on the loopback address.
type Server struct {
	cfg      *config.Config
	sessions Sessions
	tokens   token.Store
	bus      *relay.Bus

	httpServer *http.Server
}

// NewServer wires the callback routes.
func NewServer(cfg *config.Config, sessions Sessions, tokens token.Store, bus *relay.Bus) *Server {
	s := &Server{
		cfg:      cfg,
		sessions: sessions,
		tokens:   tokens,
		bus:      bus,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/auth/callback", s.handleCallback)
	r.Get("/auth/callback/complete", s.handleCallbackComplete)
	r.Get("/auth/popup/callback/{provider}", s.handlePopupCallback)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:              cfg.CallbackAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.LogInfoWithFields("callback", "Callback server listening", map[string]any{
			"addr": s.cfg.CallbackAddr,
		})
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

// handleCallback is the redirect-flow landing. A provider error short
// circuits to the error page without any backend call; otherwise the
// processing page is shown and immediately continues to the completion
// step.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if errCode := q.Get("error"); errCode != "" {
		msg := q.Get("error_description")
		if msg == "" {
			msg = errCode
		}
		log.LogWarnWithFields("callback", "Provider returned error", map[string]any{
			"error": errCode,
		})
		s.renderCallback(w, http.StatusOK, CallbackPageData{State: pageError, Message: msg})
		return
	}

	s.renderCallback(w, http.StatusOK, CallbackPageData{
		State:       pageProcessing,
		RedirectURL: "/auth/callback/complete",
	})
}

// handleCallbackComplete verifies the freshly minted cookie session and
// resolves the parked return destination.
func (s *Server) handleCallbackComplete(w http.ResponseWriter, r *http.Request) {
	snap := s.sessions.Refresh(r.Context())

	if !snap.IsAuthenticated() {
		msg := snap.Err
		if msg == "" {
			msg = "Authentication did not complete. Please try signing in again."
		}
		s.renderCallback(w, http.StatusOK, CallbackPageData{State: pageError, Message: msg})
		return
	}

	dest, err := s.tokens.TakeReturnPath(r.Context())
	if err != nil {
		if !errors.Is(err, token.ErrNotFound) {
			log.LogWarn("Failed to read return destination: %v", err)
		}
		dest = s.cfg.LandingPath
	}

	s.renderCallback(w, http.StatusOK, CallbackPageData{
		State:       pageSuccess,
		RedirectURL: s.cfg.WebBaseURL + dest,
	})
}

// handlePopupCallback relays the provider's popup result to the flow that
// opened the popup. A direct hit with no waiting flow redirects to the
// login page instead of rendering an orphan page.
func (s *Server) handlePopupCallback(w http.ResponseWriter, r *http.Request) {
	provider := config.NormalizeProvider(chi.URLParam(r, "provider"))
	if provider == config.ProviderUnknown {
		http.Redirect(w, r, s.cfg.WebBaseURL+s.cfg.LoginPath, http.StatusFound)
		return
	}

	q := r.URL.Query()
	msg := relay.Message{Origin: s.cfg.PageOrigin}
	switch {
	case q.Get("error") != "":
		msg.Type = relay.ErrorType(provider)
		msg.Error = q.Get("error")
	case q.Get("code") != "":
		// A code without a state minted by this process is a replayed or
		// forged callback; it never reaches the relay.
		if !flow.ValidStateToken(provider, q.Get("state")) {
			log.LogWarnWithFields("callback", "Popup callback with invalid state", map[string]any{
				"provider": provider,
			})
			http.Redirect(w, r, s.cfg.WebBaseURL+s.cfg.LoginPath, http.StatusFound)
			return
		}
		msg.Type = relay.SuccessType(provider)
		msg.Code = q.Get("code")
		msg.State = q.Get("state")
	default:
		msg.Type = relay.ErrorType(provider)
		msg.Error = "missing authorization code"
	}

	if !s.bus.HasPending(msg) {
		log.LogWarnWithFields("callback", "Popup callback with no waiting flow", map[string]any{
			"provider": provider,
		})
		http.Redirect(w, r, s.cfg.WebBaseURL+s.cfg.LoginPath, http.StatusFound)
		return
	}

	s.bus.Publish(msg)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := popupPageTemplate.Execute(w, PopupPageData{Provider: flow.DisplayName(provider)}); err != nil {
		log.LogError("Failed to render popup page: %v", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	json.WriteResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) renderCallback(w http.ResponseWriter, status int, data CallbackPageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := callbackPageTemplate.Execute(w, data); err != nil {
		log.LogError("Failed to render callback page: %v", err)
	}
}
