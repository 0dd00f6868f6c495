package flow

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/winningcv/authgate/internal/authapi"
	"github.com/winningcv/authgate/internal/config"
	"github.com/winningcv/authgate/internal/relay"
)

const defaultGitHubAuthorizeURL = "https://github.com/login/oauth/authorize"

// githubStrategy builds the authorization URL by hand and hands the raw
// code to the backend; GitHub has no discovery document and the client
// secret lives server-side, so no local redemption happens.
type githubStrategy struct {
	clientID      string
	authorizeURL  string
	nav           Navigator
	bus           *relay.Bus
	redirectURI   string
	watchInterval time.Duration
}

func newGitHubStrategy(clientID string, nav Navigator, bus *relay.Bus, redirectURI string, watchInterval time.Duration) *githubStrategy {
	return &githubStrategy{
		clientID:      clientID,
		authorizeURL:  defaultGitHubAuthorizeURL,
		nav:           nav,
		bus:           bus,
		redirectURI:   redirectURI,
		watchInterval: watchInterval,
	}
}

func (s *githubStrategy) Name() string { return config.ProviderGitHub }

func (s *githubStrategy) Available() bool { return s.clientID != "" }

func (s *githubStrategy) Acquire(ctx context.Context) Result {
	state, err := NewStateToken(s.Name())
	if err != nil {
		return Failed(fmt.Errorf("failed to generate state: %w", err))
	}

	authURL := s.authorizeURL + "?" + url.Values{
		"client_id":    {s.clientID},
		"redirect_uri": {s.redirectURI},
		"scope":        {"user:email"},
		"state":        {state},
	}.Encode()

	msg, res := awaitPopup(ctx, s.nav, s.bus, authURL, s.Name(), state, s.watchInterval)
	if res != nil {
		return *res
	}

	return Ok(authapi.Credential{Code: msg.Code})
}
