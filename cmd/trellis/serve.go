package main

import (
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/trellis"
)

func serveCmd() *cobra.Command {
	var (
		addr    string
		migrate bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Long: `Run the site and the admin.

The server seeds the default post types and the admin account from
ADMIN_EMAIL and ADMIN_PASSWORD, builds the runtime routes and, with
DATABASE_URL set, processes background jobs.

Examples:
  trellis serve
  trellis serve --addr=:3000 --migrate`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			log := newLogger(cfg)
			ctx := cmd.Context()

			be, err := openBackend(ctx, cfg, log)
			if err != nil {
				return err
			}
			if migrate {
				if err := be.migrate(ctx, cfg, log); err != nil {
					be.Close()
					return err
				}
			}
			if err := be.seed(ctx, cfg, log); err != nil {
				be.Close()
				return err
			}

			app, _, err := buildApp(ctx, cfg, log, be)
			if err != nil {
				be.Close()
				return err
			}
			return app.Run(cfg.Addr,
				trellis.Logger(log),
				trellis.ShutdownTimeout(cfg.ShutdownTimeout),
			)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address (default HTTP_ADDR)")
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply schema migrations before starting")

	return cmd
}
