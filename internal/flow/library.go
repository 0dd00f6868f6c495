package flow

import (
	"context"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/winningcv/authgate/internal/log"
)

const microsoftIssuerBase = "https://login.microsoftonline.com/"

// MicrosoftLibrary lazily discovers the Microsoft identity platform
// endpoints via OIDC discovery. Discovery runs at most once per process,
// repeated logins reuse the memoized result.
type MicrosoftLibrary struct {
	issuer string

	once     sync.Once
	provider *oidc.Provider
	err      error
}

// NewMicrosoftLibrary creates a library for the given tenant ("common" for
// multi-tenant apps).
func NewMicrosoftLibrary(tenant string) *MicrosoftLibrary {
	return &MicrosoftLibrary{issuer: microsoftIssuerBase + tenant + "/v2.0"}
}

func newLibraryForIssuer(issuer string) *MicrosoftLibrary {
	return &MicrosoftLibrary{issuer: issuer}
}

// Endpoint returns the discovered OAuth2 endpoints. A failed discovery is
// memoized too; callers fall back to the redirect flow rather than retrying
// discovery on every click.
func (l *MicrosoftLibrary) Endpoint(ctx context.Context) (oauth2.Endpoint, error) {
	l.once.Do(func() {
		l.provider, l.err = oidc.NewProvider(ctx, l.issuer)
		if l.err != nil {
			log.LogErrorWithFields("flow", "Microsoft endpoint discovery failed", map[string]any{
				"issuer": l.issuer,
				"error":  l.err.Error(),
			})
		}
	})
	if l.err != nil {
		return oauth2.Endpoint{}, l.err
	}
	return l.provider.Endpoint(), nil
}
