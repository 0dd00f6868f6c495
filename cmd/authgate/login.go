package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/winningcv/authgate/internal/flow"
	"github.com/winningcv/authgate/internal/session"
)

func loginCmd() *cobra.Command {
	var provider string
	var returnPath string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to WinningCV",
		Long: `Sign in through an identity provider.

Popup-capable providers complete in a browser window; otherwise the hosted
login page opens and the session is picked up when the provider redirects
back to the local callback.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// The callback surface must be up before the browser opens.
			serverCtx, stopServer := context.WithCancel(ctx)
			defer stopServer()
			serverDone := make(chan error, 1)
			go func() { serverDone <- a.server.Start(serverCtx) }()

			authed := make(chan struct{}, 1)
			a.sessions.OnChange(func(s session.Snapshot) {
				if s.IsAuthenticated() {
					select {
					case authed <- struct{}{}:
					default:
					}
				}
			})

			if err := a.coordinator.Login(ctx, provider, returnPath); err != nil {
				return err
			}

			snap := a.sessions.Snapshot()
			if !snap.IsAuthenticated() {
				// A redirect-based login is still in flight in the
				// browser; hold the callback surface open for it.
				fmt.Println("Complete the sign-in in your browser...")
				select {
				case <-authed:
					snap = a.sessions.Snapshot()
				case <-time.After(a.cfg.FlowTimeout):
					fmt.Println("Sign-in was not completed.")
					return nil
				case <-ctx.Done():
					return nil
				}
			}

			if snap.IsAuthenticated() {
				fmt.Printf("Signed in as %s via %s\n",
					snap.Session.Email, flow.DisplayName(snap.Session.Provider))
			}

			stopServer()
			<-serverDone
			return nil
		},
	}

	cmd.Flags().StringVarP(&provider, "provider", "p", "", "Identity provider (google, microsoft, github)")
	cmd.Flags().StringVar(&returnPath, "return", "", "Web app path to land on after sign-in")
	_ = cmd.MarkFlagRequired("provider")

	return cmd
}
