// Command trellis runs the CMS site: the HTTP server, schema migrations,
// content seeding and a runtime route listing.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "trellis",
		Short: "Server-rendered site with an admin CMS",
		Long: `trellis serves a server-rendered site whose pages are edited in the
built-in admin at /admin.

Configuration is read from the environment and from a .env file in the
working directory. Without DATABASE_URL content is kept in memory.`,
		Version:       version + " (" + commit + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringSlice("env-file", nil, "env files to load (default .env)")

	rootCmd.AddCommand(
		serveCmd(),
		migrateCmd(),
		seedCmd(),
		routesCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
