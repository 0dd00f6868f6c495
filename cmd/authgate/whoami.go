package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/winningcv/authgate/internal/flow"
)

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current WinningCV session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			snap := a.sessions.Refresh(cmd.Context())
			if !snap.IsAuthenticated() {
				if snap.Err != "" {
					return fmt.Errorf("not signed in (%s)", snap.Err)
				}
				return fmt.Errorf("not signed in")
			}

			s := snap.Session
			fmt.Printf("Signed in as:  %s\n", s.Email)
			fmt.Printf("Name:          %s\n", s.DisplayName)
			fmt.Printf("Provider:      %s\n", flow.DisplayName(s.Provider))
			fmt.Printf("Verified:      %t\n", s.IsVerified)
			if s.IsStaff || s.IsSuperuser {
				fmt.Printf("Staff:         %t\n", s.IsStaff)
				fmt.Printf("Superuser:     %t\n", s.IsSuperuser)
			}
			return nil
		},
	}
}
