// Command authgate is the WinningCV session companion: it signs users in
// through Google, Microsoft or GitHub, keeps the backend session token in a
// local encrypted store, and hosts the loopback callback pages the hosted
// login flows return to.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/winningcv/authgate/internal/log"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:   "authgate",
		Short: "WinningCV sign-in companion",
		Long: `Authgate manages the WinningCV session on this machine.

It signs you in through Google, Microsoft or GitHub, stores the resulting
session token encrypted on disk, and keeps the session in sync with the
WinningCV backend.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if logLevel == "" {
				return nil
			}
			return log.SetLogLevel(logLevel)
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		loginCmd(),
		logoutCmd(),
		whoamiCmd(),
		serveCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
