// Package config loads authgate configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Provider identifiers understood by the coordinator.
const (
	ProviderGoogle    = "google"
	ProviderMicrosoft = "microsoft"
	ProviderGitHub    = "github"
	ProviderUnknown   = "unknown"
)

// Providers lists the providers a login can be attempted against.
var Providers = []string{ProviderGoogle, ProviderMicrosoft, ProviderGitHub}

// GoogleConfig holds the Google in-page credential strategy configuration.
type GoogleConfig struct {
	ClientID string `env:"GOOGLE_CLIENT_ID"`
}

// MicrosoftConfig holds the Microsoft popup library flow configuration.
type MicrosoftConfig struct {
	ClientID string `env:"MICROSOFT_CLIENT_ID"`
	TenantID string `env:"MICROSOFT_TENANT_ID" envDefault:"common"`
}

// GitHubConfig holds the GitHub authorization popup configuration.
type GitHubConfig struct {
	ClientID string `env:"GITHUB_CLIENT_ID"`
}

// Config is the full authgate configuration. Client secrets are absent on
// purpose: authgate is a public client, provider credentials are exchanged
// by the backend auth service.
type Config struct {
	// APIBaseURL is the WinningCV API the session status and login-url
	// endpoints live on.
	APIBaseURL string `env:"WINNINGCV_API_URL" envDefault:"http://localhost:8000"`

	// AuthServiceURL is the external identity/auth microservice.
	AuthServiceURL string `env:"AUTH_SERVICE_URL" envDefault:"https://ai-video-backend.jackhui.com.au"`

	// WebBaseURL is the WinningCV web app; post-login redirects land on
	// paths under it.
	WebBaseURL string `env:"WINNINGCV_WEB_URL" envDefault:"http://localhost:3000"`

	// CallbackAddr is the loopback address the callback surface listens on.
	CallbackAddr string `env:"AUTHGATE_CALLBACK_ADDR" envDefault:"127.0.0.1:8787"`

	// PageOrigin is the origin relay messages must carry to be trusted.
	// Defaults to http://<CallbackAddr>.
	PageOrigin string `env:"AUTHGATE_ORIGIN"`

	// TokenDBPath is the durable local store. Defaults to
	// <user config dir>/winningcv/authgate.db.
	TokenDBPath string `env:"AUTHGATE_TOKEN_DB"`

	// EncryptionKey protects the stored session token at rest.
	EncryptionKey string `env:"AUTHGATE_ENCRYPTION_KEY"`

	// LandingPath is the default ReturnDestination after a redirect login.
	LandingPath string `env:"AUTHGATE_LANDING_PATH" envDefault:"/dashboard"`

	// LoginPath is where the popup callback sends users who hit it directly.
	LoginPath string `env:"AUTHGATE_LOGIN_PATH" envDefault:"/login"`

	// FlowTimeout bounds how long a popup flow waits for the provider.
	FlowTimeout time.Duration `env:"AUTHGATE_FLOW_TIMEOUT" envDefault:"5m"`

	// WatchdogInterval is how often the popup-closed watchdog polls.
	WatchdogInterval time.Duration `env:"AUTHGATE_WATCHDOG_INTERVAL" envDefault:"1s"`

	Google    GoogleConfig
	Microsoft MicrosoftConfig
	GitHub    GitHubConfig
}

// Load parses configuration from the environment and fills derived defaults.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	cfg.AuthServiceURL = strings.TrimRight(cfg.AuthServiceURL, "/")
	cfg.WebBaseURL = strings.TrimRight(cfg.WebBaseURL, "/")

	if cfg.PageOrigin == "" {
		cfg.PageOrigin = "http://" + cfg.CallbackAddr
	}

	if cfg.TokenDBPath == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config dir: %w", err)
		}
		cfg.TokenDBPath = filepath.Join(dir, "winningcv", "authgate.db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks invariants that would otherwise surface as confusing
// runtime failures.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("WINNINGCV_API_URL must not be empty")
	}
	if c.AuthServiceURL == "" {
		return fmt.Errorf("AUTH_SERVICE_URL must not be empty")
	}
	if c.WebBaseURL == "" {
		return fmt.Errorf("WINNINGCV_WEB_URL must not be empty")
	}
	if c.FlowTimeout <= 0 {
		return fmt.Errorf("AUTHGATE_FLOW_TIMEOUT must be positive")
	}
	if c.WatchdogInterval <= 0 {
		return fmt.Errorf("AUTHGATE_WATCHDOG_INTERVAL must be positive")
	}
	return nil
}

// ClientID returns the configured client ID for a provider, empty when the
// provider's in-page strategy is not configured.
func (c *Config) ClientID(provider string) string {
	switch provider {
	case ProviderGoogle:
		return c.Google.ClientID
	case ProviderMicrosoft:
		return c.Microsoft.ClientID
	case ProviderGitHub:
		return c.GitHub.ClientID
	default:
		return ""
	}
}

// KnownProvider reports whether the provider name is one authgate can log
// in against.
func KnownProvider(provider string) bool {
	switch provider {
	case ProviderGoogle, ProviderMicrosoft, ProviderGitHub:
		return true
	default:
		return false
	}
}

// NormalizeProvider maps arbitrary provider strings from backend payloads
// onto the known enum, folding anything else to "unknown".
func NormalizeProvider(provider string) string {
	p := strings.ToLower(strings.TrimSpace(provider))
	if KnownProvider(p) {
		return p
	}
	return ProviderUnknown
}
