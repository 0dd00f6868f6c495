package flow

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/winningcv/authgate/internal/relay"
)

const testOrigin = "http://127.0.0.1:8787"

func publishWhenPending(t *testing.T, bus *relay.Bus, probe relay.Message, build func(state string) relay.Message, nav *fakeNavigator) {
	t.Helper()
	go func() {
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			nav.mu.Lock()
			var state string
			if len(nav.opened) > 0 {
				u, err := url.Parse(nav.opened[0])
				if err == nil {
					state = u.Query().Get("state")
				}
			}
			nav.mu.Unlock()

			if state != "" && bus.HasPending(probe) {
				bus.Publish(build(state))
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()
}

func TestGitHubStrategy_SuccessYieldsCode(t *testing.T) {
	bus := relay.NewBus(testOrigin)
	nav := &fakeNavigator{}
	s := newGitHubStrategy("gh-client", nav, bus, testOrigin+"/auth/popup/callback", 10*time.Millisecond)

	probe := relay.Message{Type: relay.ErrorType("github"), Origin: testOrigin, Error: "probe"}
	publishWhenPending(t, bus, probe, func(state string) relay.Message {
		return relay.Message{
			Type:   relay.SuccessType("github"),
			Origin: testOrigin,
			Code:   "gh-auth-code",
			State:  state,
		}
	}, nav)

	res := s.Acquire(context.Background())

	require.True(t, res.IsOk(), "reason: %v", res.Reason())
	assert.Equal(t, "gh-auth-code", res.Credential().Code)
	assert.Empty(t, res.Credential().AccessToken)

	// The authorize URL carries the client ID and the popup redirect.
	require.Len(t, nav.opened, 1)
	u, err := url.Parse(nav.opened[0])
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(nav.opened[0], defaultGitHubAuthorizeURL))
	assert.Equal(t, "gh-client", u.Query().Get("client_id"))
	assert.Equal(t, testOrigin+"/auth/popup/callback", u.Query().Get("redirect_uri"))
	assert.Equal(t, "user:email", u.Query().Get("scope"))
	assert.NotEmpty(t, u.Query().Get("state"))
}

func TestGitHubStrategy_AccessDeniedFails(t *testing.T) {
	bus := relay.NewBus(testOrigin)
	nav := &fakeNavigator{}
	s := newGitHubStrategy("gh-client", nav, bus, testOrigin+"/auth/popup/callback", 10*time.Millisecond)

	probe := relay.Message{Type: relay.ErrorType("github"), Origin: testOrigin, Error: "probe"}
	publishWhenPending(t, bus, probe, func(string) relay.Message {
		return relay.Message{
			Type:   relay.ErrorType("github"),
			Origin: testOrigin,
			Error:  "access_denied",
		}
	}, nav)

	res := s.Acquire(context.Background())
	require.False(t, res.IsOk())
	require.False(t, res.IsCancelled())
	assert.ErrorContains(t, res.Reason(), "access_denied")
}

func TestGitHubStrategy_UserCancelledResolvesSilently(t *testing.T) {
	bus := relay.NewBus(testOrigin)
	nav := &fakeNavigator{}
	s := newGitHubStrategy("gh-client", nav, bus, testOrigin+"/auth/popup/callback", 10*time.Millisecond)

	probe := relay.Message{Type: relay.ErrorType("github"), Origin: testOrigin, Error: "probe"}
	publishWhenPending(t, bus, probe, func(string) relay.Message {
		return relay.Message{
			Type:   relay.ErrorType("github"),
			Origin: testOrigin,
			Error:  "user_cancelled",
		}
	}, nav)

	res := s.Acquire(context.Background())
	assert.True(t, res.IsCancelled())
}

func TestGitHubStrategy_ProviderErrorFails(t *testing.T) {
	bus := relay.NewBus(testOrigin)
	nav := &fakeNavigator{}
	s := newGitHubStrategy("gh-client", nav, bus, testOrigin+"/auth/popup/callback", 10*time.Millisecond)

	probe := relay.Message{Type: relay.ErrorType("github"), Origin: testOrigin, Error: "probe"}
	publishWhenPending(t, bus, probe, func(string) relay.Message {
		return relay.Message{
			Type:   relay.ErrorType("github"),
			Origin: testOrigin,
			Error:  "server_error",
		}
	}, nav)

	res := s.Acquire(context.Background())
	require.False(t, res.IsOk())
	require.False(t, res.IsCancelled())
	assert.ErrorContains(t, res.Reason(), "server_error")
}

func TestGitHubStrategy_ClosedPopupCancels(t *testing.T) {
	bus := relay.NewBus(testOrigin)
	popup := &fakePopup{}
	nav := &fakeNavigator{popup: popup}
	s := newGitHubStrategy("gh-client", nav, bus, testOrigin+"/auth/popup/callback", 5*time.Millisecond)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = popup.Close()
	}()

	res := s.Acquire(context.Background())
	assert.True(t, res.IsCancelled())
}

func TestGitHubStrategy_TimeoutCancels(t *testing.T) {
	bus := relay.NewBus(testOrigin)
	nav := &fakeNavigator{}
	s := newGitHubStrategy("gh-client", nav, bus, testOrigin+"/auth/popup/callback", 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	res := s.Acquire(ctx)
	assert.True(t, res.IsCancelled())
}

func TestGitHubStrategy_StateMismatchNotAccepted(t *testing.T) {
	bus := relay.NewBus(testOrigin)
	nav := &fakeNavigator{}
	s := newGitHubStrategy("gh-client", nav, bus, testOrigin+"/auth/popup/callback", 10*time.Millisecond)

	probe := relay.Message{Type: relay.ErrorType("github"), Origin: testOrigin, Error: "probe"}
	publishWhenPending(t, bus, probe, func(string) relay.Message {
		// A success message with a foreign state nonce must be ignored.
		return relay.Message{
			Type:   relay.SuccessType("github"),
			Origin: testOrigin,
			Code:   "stolen-code",
			State:  "not-our-state",
		}
	}, nav)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	res := s.Acquire(ctx)
	assert.True(t, res.IsCancelled(), "mismatched state must never produce a credential")
}

func TestGoogleStrategy_Availability(t *testing.T) {
	assert.False(t, newGoogleStrategy("", nil).Available())
	assert.False(t, newGoogleStrategy("id", nil).Available())
	assert.False(t, newGoogleStrategy("", &stubGoogleSource{}).Available())
	assert.True(t, newGoogleStrategy("id", &stubGoogleSource{}).Available())
}

func TestGoogleStrategy_DismissedPromptCancels(t *testing.T) {
	s := newGoogleStrategy("id", &stubGoogleSource{err: ErrNoCredential})
	res := s.Acquire(context.Background())
	assert.True(t, res.IsCancelled())
}

func TestMicrosoftStrategy_Availability(t *testing.T) {
	lib := NewMicrosoftLibrary("common")
	assert.False(t, newMicrosoftStrategy("", lib, &fakeNavigator{}, relay.NewBus(testOrigin), "", time.Second).Available())
	assert.True(t, newMicrosoftStrategy("ms-client", lib, &fakeNavigator{}, relay.NewBus(testOrigin), "", time.Second).Available())
}
