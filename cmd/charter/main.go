// Command charter runs and administers the store-policy service.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "charter:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "charter",
		Short: "Versioned store policies with typed configuration",
		Long: `charter serves versioned store policies (returns, refunds, warranty,
shipping, prescriptions, cancellation, privacy, terms).

Managers author draft versions over the JSON API, each type's config is
validated against its contract, and exactly one version per type is active.
Customers read active policies without authentication.

Configuration is read from charter.yaml (or --config) and CHARTER_*
environment variables, e.g. CHARTER_STORE_DSN.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./charter.yaml)")

	root.AddCommand(
		newServeCmd(&configPath),
		newMigrateCmd(&configPath),
		newValidateCmd(),
		newTokenCmd(&configPath),
	)
	return root
}
