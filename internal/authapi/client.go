// Package authapi is the HTTP client for the WinningCV API and the external
// identity/auth microservice it fronts.
package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/winningcv/authgate/internal/log"
	"github.com/winningcv/authgate/internal/urlutil"
)

const defaultTimeout = 10 * time.Second

// Client talks to the two backend surfaces: the WinningCV API (session
// status, login-url resolver, cookie logout) and the auth service (token
// identity check, provider exchange, token revocation). All requests go
// through one cookie jar so the cookie-session fallback works.
type Client struct {
	apiBaseURL     string
	authServiceURL string
	httpClient     *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client (for tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates an auth API client with an in-memory cookie jar.
func NewClient(apiBaseURL, authServiceURL string, opts ...Option) *Client {
	jar, _ := cookiejar.New(nil)
	c := &Client{
		apiBaseURL:     apiBaseURL,
		authServiceURL: authServiceURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
			Jar:     jar,
		},
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Accept", "application/json")
	return c.httpClient.Do(req)
}

// VerifyToken validates a bearer token against the auth service identity
// endpoint. Returns ErrUnauthorized on 401.
func (c *Client) VerifyToken(ctx context.Context, token string) (*Identity, error) {
	endpoint := urlutil.MustJoinPath(c.authServiceURL, "/api/sehs/user-info/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+token)

	resp, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("identity check failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var identity Identity
		if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
			return nil, fmt.Errorf("failed to decode identity: %w", err)
		}
		return &identity, nil
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrUnauthorized
	default:
		return nil, fmt.Errorf("%w: identity check status %d", ErrUpstream, resp.StatusCode)
	}
}

// Status checks the cookie-based session. Browser credentials ride along in
// the jar.
func (c *Client) Status(ctx context.Context) (*AuthStatus, error) {
	endpoint := urlutil.MustJoinPath(c.apiBaseURL, "/auth/me")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("session status check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("session status: unexpected status %d", resp.StatusCode)
	}

	var status AuthStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode session status: %w", err)
	}
	return &status, nil
}

// LoginURL resolves the redirect-flow login URL for a provider.
func (c *Client) LoginURL(ctx context.Context, provider string) (string, error) {
	endpoint := urlutil.MustJoinPath(c.apiBaseURL, "/auth/login-url")
	endpoint += "?" + url.Values{"provider": {provider}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("login-url fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login-url: unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		LoginURL string `json:"login_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode login-url response: %w", err)
	}
	if payload.LoginURL == "" {
		return "", fmt.Errorf("login-url: empty login_url for provider %s", provider)
	}
	return payload.LoginURL, nil
}

// Exchange trades a provider credential for an opaque session token at the
// auth service's per-provider exchange endpoint.
func (c *Client) Exchange(ctx context.Context, provider string, credential Credential) (string, error) {
	endpoint := urlutil.MustJoinPath(c.authServiceURL, "/api/dj-rest-auth/", provider+"/")

	body, err := json.Marshal(credential)
	if err != nil {
		return "", fmt.Errorf("failed to marshal credential: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.LogErrorWithFields("authapi", "Token exchange rejected", map[string]any{
			"provider": provider,
			"status":   resp.StatusCode,
			"body":     string(detail),
		})
		return "", fmt.Errorf("token exchange: unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		Key string `json:"key"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode exchange response: %w", err)
	}
	if payload.Key == "" {
		return "", fmt.Errorf("token exchange: empty key in response")
	}
	return payload.Key, nil
}

// RevokeToken invalidates a bearer token server-side.
func (c *Client) RevokeToken(ctx context.Context, token string) error {
	endpoint := urlutil.MustJoinPath(c.authServiceURL, "/api/dj-rest-auth/logout/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+token)

	resp, err := c.do(req)
	if err != nil {
		return fmt.Errorf("token revocation failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("token revocation: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// CSRFToken fetches the CSRF token the cookie-session endpoints require on
// mutating requests.
func (c *Client) CSRFToken(ctx context.Context) (string, error) {
	endpoint := urlutil.MustJoinPath(c.apiBaseURL, "/auth/csrf")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("csrf fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("csrf: unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		CSRFToken string `json:"csrf_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode csrf response: %w", err)
	}
	return payload.CSRFToken, nil
}

// CookieLogout ends the cookie session. The CSRF token fetch is best-effort,
// a missing token just means the POST goes out without the header.
func (c *Client) CookieLogout(ctx context.Context) error {
	csrf, err := c.CSRFToken(ctx)
	if err != nil {
		log.LogDebug("CSRF token unavailable for logout: %v", err)
	}

	endpoint := urlutil.MustJoinPath(c.apiBaseURL, "/auth/logout")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if csrf != "" {
		req.Header.Set("X-CSRFToken", csrf)
	}

	resp, err := c.do(req)
	if err != nil {
		return fmt.Errorf("cookie logout failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("cookie logout: unexpected status %d", resp.StatusCode)
	}
	return nil
}
