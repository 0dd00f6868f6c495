package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the callback server in the foreground",
		Long: `Run the loopback callback server without starting a login.

Useful when logins are initiated from the WinningCV web app and only the
local callback surface (and its /metrics endpoint) is needed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Printf("Listening on http://%s\n", a.cfg.CallbackAddr)
			return a.server.Start(ctx)
		},
	}
}
