package flow

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"github.com/winningcv/authgate/internal/authapi"
	"github.com/winningcv/authgate/internal/config"
	"github.com/winningcv/authgate/internal/relay"
)

// microsoftStrategy runs a PKCE authorization-code flow through a popup.
// authgate is a public client, so the code exchange at the Microsoft token
// endpoint carries a verifier instead of a client secret; the resulting
// access token is what the backend exchange consumes.
type microsoftStrategy struct {
	clientID      string
	library       *MicrosoftLibrary
	nav           Navigator
	bus           *relay.Bus
	redirectURI   string
	watchInterval time.Duration
}

func newMicrosoftStrategy(clientID string, library *MicrosoftLibrary, nav Navigator, bus *relay.Bus, redirectURI string, watchInterval time.Duration) *microsoftStrategy {
	return &microsoftStrategy{
		clientID:      clientID,
		library:       library,
		nav:           nav,
		bus:           bus,
		redirectURI:   redirectURI,
		watchInterval: watchInterval,
	}
}

func (s *microsoftStrategy) Name() string { return config.ProviderMicrosoft }

func (s *microsoftStrategy) Available() bool { return s.clientID != "" }

func (s *microsoftStrategy) Acquire(ctx context.Context) Result {
	endpoint, err := s.library.Endpoint(ctx)
	if err != nil {
		return Failed(fmt.Errorf("microsoft endpoint discovery failed: %w", err))
	}

	state, err := NewStateToken(s.Name())
	if err != nil {
		return Failed(fmt.Errorf("failed to generate state: %w", err))
	}
	verifier := oauth2.GenerateVerifier()

	ocfg := oauth2.Config{
		ClientID:    s.clientID,
		Endpoint:    endpoint,
		RedirectURL: s.redirectURI,
		Scopes:      []string{"openid", "profile", "email"},
	}
	authURL := ocfg.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))

	msg, res := awaitPopup(ctx, s.nav, s.bus, authURL, s.Name(), state, s.watchInterval)
	if res != nil {
		return *res
	}

	// The code alone is useless to the backend; redeem it here with the
	// PKCE verifier and hand over the resulting access token.
	tok, err := ocfg.Exchange(ctx, msg.Code, oauth2.VerifierOption(verifier))
	if err != nil {
		if cancelledCause(ctx) {
			return Cancelled()
		}
		return Failed(fmt.Errorf("microsoft code redemption failed: %w", err))
	}

	return Ok(authapi.Credential{AccessToken: tok.AccessToken})
}
