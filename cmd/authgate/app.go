package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/winningcv/authgate/internal/authapi"
	"github.com/winningcv/authgate/internal/callback"
	"github.com/winningcv/authgate/internal/config"
	"github.com/winningcv/authgate/internal/crypto"
	"github.com/winningcv/authgate/internal/flow"
	"github.com/winningcv/authgate/internal/relay"
	"github.com/winningcv/authgate/internal/session"
	"github.com/winningcv/authgate/internal/token"
)

// app wires the full dependency graph once per command invocation.
type app struct {
	cfg         *config.Config
	tokens      token.Store
	api         *authapi.Client
	sessions    *session.Store
	bus         *relay.Bus
	coordinator *flow.Coordinator
	server      *callback.Server
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	key, err := encryptionKey(cfg)
	if err != nil {
		return nil, err
	}
	encryptor, err := crypto.NewEncryptor(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize encryption: %w", err)
	}

	tokens, err := token.OpenSQLite(cfg.TokenDBPath, encryptor)
	if err != nil {
		return nil, fmt.Errorf("failed to open token store: %w", err)
	}

	api := authapi.NewClient(cfg.APIBaseURL, cfg.AuthServiceURL)
	sessions := session.NewStore(api, tokens)
	bus := relay.NewBus(cfg.PageOrigin)
	nav := flow.SystemNavigator{}

	// No Google Identity Services integration on this surface; Google
	// logins go through the hosted redirect flow.
	coordinator := flow.NewCoordinator(cfg, api, sessions, tokens, nav, bus, nil)
	server := callback.NewServer(cfg, sessions, tokens, bus)

	return &app{
		cfg:         cfg,
		tokens:      tokens,
		api:         api,
		sessions:    sessions,
		bus:         bus,
		coordinator: coordinator,
		server:      server,
	}, nil
}

func (a *app) close() {
	if err := a.tokens.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to close token store: %v\n", err)
	}
}

// encryptionKey resolves the at-rest encryption key: the environment wins,
// otherwise a per-machine key file next to the token store is created on
// first use.
func encryptionKey(cfg *config.Config) ([]byte, error) {
	if cfg.EncryptionKey != "" {
		return []byte(cfg.EncryptionKey), nil
	}

	keyPath := filepath.Join(filepath.Dir(cfg.TokenDBPath), "authgate.key")
	data, err := os.ReadFile(keyPath)
	if err == nil {
		return []byte(strings.TrimSpace(string(data))), nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	generated, err := crypto.GenerateSecureToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate encryption key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(keyPath), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create key dir: %w", err)
	}
	if err := os.WriteFile(keyPath, []byte(generated), 0o600); err != nil {
		return nil, fmt.Errorf("failed to write key file: %w", err)
	}
	return []byte(generated), nil
}
