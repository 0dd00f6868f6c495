package flow

import (
	"crypto/rand"
	"time"

	"github.com/winningcv/authgate/internal/crypto"
)

// stateTTL bounds how long a minted state token stays redeemable. Popup
// flows finish well inside this; anything older is a replay.
const stateTTL = 10 * time.Minute

// stateSigner signs with a process-local random key, so a state token is
// only ever valid for the process that minted it.
var stateSigner = newProcessSigner()

func newProcessSigner() crypto.TokenSigner {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		panic("failed to seed state signer: " + err.Error())
	}
	return crypto.NewTokenSigner(key, stateTTL)
}

type stateClaims struct {
	Provider string `json:"provider"`
	Nonce    string `json:"nonce"`
}

// NewStateToken mints the signed state parameter for a provider's popup
// flow.
func NewStateToken(provider string) (string, error) {
	nonce, err := crypto.GenerateSecureToken()
	if err != nil {
		return "", err
	}
	return stateSigner.Sign(stateClaims{Provider: provider, Nonce: nonce})
}

// ValidStateToken reports whether state was minted by this process for the
// provider and has not expired. The popup callback checks this before any
// message is relayed.
func ValidStateToken(provider, state string) bool {
	var claims stateClaims
	if err := stateSigner.Verify(state, &claims); err != nil {
		return false
	}
	return claims.Provider == provider
}
