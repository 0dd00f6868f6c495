package flow

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/winningcv/authgate/internal/authapi"
	"github.com/winningcv/authgate/internal/config"
	"github.com/winningcv/authgate/internal/log"
)

// ErrNoCredential is returned by a credential source when the user dismissed
// the prompt without picking an account.
var ErrNoCredential = errors.New("no credential selected")

// GoogleCredentialSource produces a Google ID token for the signed-in user,
// typically by driving the Google Identity Services prompt. A nil source
// means the integration is unavailable and logins fall back to the redirect
// flow.
type GoogleCredentialSource interface {
	Credential(ctx context.Context) (string, error)
}

// googleStrategy acquires an ID token in place. There is no popup window to
// watch; the source either produces a credential or reports dismissal.
type googleStrategy struct {
	clientID string
	source   GoogleCredentialSource
}

func newGoogleStrategy(clientID string, source GoogleCredentialSource) *googleStrategy {
	return &googleStrategy{clientID: clientID, source: source}
}

func (s *googleStrategy) Name() string { return config.ProviderGoogle }

func (s *googleStrategy) Available() bool {
	return s.clientID != "" && s.source != nil
}

func (s *googleStrategy) Acquire(ctx context.Context) Result {
	idToken, err := s.source.Credential(ctx)
	switch {
	case errors.Is(err, ErrNoCredential), cancelledCause(ctx):
		return Cancelled()
	case err != nil:
		return Failed(fmt.Errorf("google credential prompt failed: %w", err))
	}

	// The token is verified by the backend during exchange. The local parse
	// is unverified and only feeds the debug log.
	if claims := unverifiedClaims(idToken); claims != nil {
		log.LogDebugWithFields("flow", "Google credential acquired", map[string]any{
			"email": claims["email"],
		})
	}

	return Ok(authapi.Credential{AccessToken: idToken})
}

func unverifiedClaims(idToken string) jwt.MapClaims {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(idToken, claims); err != nil {
		return nil
	}
	return claims
}
