package authapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/sehs/user-info/", r.URL.Path)

		switch r.Header.Get("Authorization") {
		case "Token valid-token":
			w.Header().Set("Content-Type", "application/json")
			err := json.NewEncoder(w).Encode(Identity{
				AuthUserID:  42,
				Email:       "user@example.com",
				DisplayName: "Test User",
				Provider:    "google",
				IsVerified:  true,
			})
			require.NoError(t, err)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, server.URL)

	identity, err := client.VerifyToken(context.Background(), "valid-token")
	require.NoError(t, err)
	assert.Equal(t, int64(42), identity.AuthUserID)
	assert.Equal(t, "user@example.com", identity.Email)
	assert.Equal(t, "google", identity.Provider)

	_, err = client.VerifyToken(context.Background(), "expired-token")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestVerifyToken_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, server.URL)

	_, err := client.VerifyToken(context.Background(), "any")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthorized)
	assert.Contains(t, err.Error(), "status 502")
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name          string
		payload       AuthStatus
		authenticated bool
	}{
		{
			name: "authenticated",
			payload: AuthStatus{
				IsAuthenticated: true,
				User:            &Identity{AuthUserID: 7, Email: "user@example.com", DisplayName: "U", Provider: "github"},
			},
			authenticated: true,
		},
		{
			name:          "anonymous",
			payload:       AuthStatus{IsAuthenticated: false},
			authenticated: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/auth/me", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				require.NoError(t, json.NewEncoder(w).Encode(tt.payload))
			}))
			defer server.Close()

			client := NewClient(server.URL, server.URL)

			status, err := client.Status(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.authenticated, status.IsAuthenticated)
			if tt.authenticated {
				require.NotNil(t, status.User)
				assert.Equal(t, "user@example.com", status.User.Email)
			} else {
				assert.Nil(t, status.User)
			}
		})
	}
}

func TestLoginURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/login-url", r.URL.Path)
		require.Equal(t, "github", r.URL.Query().Get("provider"))

		w.Header().Set("Content-Type", "application/json")
		err := json.NewEncoder(w).Encode(map[string]string{
			"provider":  "github",
			"login_url": "https://auth.example/accounts/github/login/",
		})
		require.NoError(t, err)
	}))
	defer server.Close()

	client := NewClient(server.URL, server.URL)

	loginURL, err := client.LoginURL(context.Background(), "github")
	require.NoError(t, err)
	assert.Equal(t, "https://auth.example/accounts/github/login/", loginURL)
}

func TestExchange(t *testing.T) {
	var gotBody Credential
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/dj-rest-auth/github/", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(map[string]string{"key": "abc123"}))
	}))
	defer server.Close()

	client := NewClient(server.URL, server.URL)

	key, err := client.Exchange(context.Background(), "github", Credential{Code: "auth-code"})
	require.NoError(t, err)
	assert.Equal(t, "abc123", key)
	assert.Equal(t, "auth-code", gotBody.Code)
	assert.Empty(t, gotBody.AccessToken)
}

func TestExchange_NonSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(server.URL, server.URL)

	_, err := client.Exchange(context.Background(), "google", Credential{AccessToken: "t"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

func TestRevokeToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/dj-rest-auth/logout/", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(server.URL, server.URL)

	require.NoError(t, client.RevokeToken(context.Background(), "abc123"))
	assert.Equal(t, "Token abc123", gotAuth)
}

func TestCookieLogout(t *testing.T) {
	var gotCSRF string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/csrf":
			w.Header().Set("Content-Type", "application/json")
			require.NoError(t, json.NewEncoder(w).Encode(map[string]string{"csrf_token": "csrf-abc"}))
		case "/auth/logout":
			require.Equal(t, http.MethodPost, r.Method)
			gotCSRF = r.Header.Get("X-CSRFToken")
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, server.URL)

	require.NoError(t, client.CookieLogout(context.Background()))
	assert.Equal(t, "csrf-abc", gotCSRF)
}

func TestCookieLogout_CSRFUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/csrf":
			w.WriteHeader(http.StatusServiceUnavailable)
		case "/auth/logout":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, server.URL)

	// Logout still goes through without the CSRF header.
	require.NoError(t, client.CookieLogout(context.Background()))
}
