package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out of WinningCV",
		Long: `End the local session.

The stored token is removed and revoked server-side when the backend is
reachable; signing out never fails on network errors.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			a.sessions.Logout(cmd.Context())
			fmt.Println("Signed out.")
			return nil
		},
	}
}
