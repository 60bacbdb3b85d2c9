package main

import (
	"github.com/spf13/cobra"
)

func seedCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load initial content",
		Long: `Create the users, post types, field groups and posts of a YAML seed
file that do not exist yet. Without --file the built-in seed (the "post"
and "page" post types) is applied. Requires DATABASE_URL.

Examples:
  trellis seed
  trellis seed --file=content/seed.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errNoDatabase
			}
			if file != "" {
				cfg.SeedFile = file
			}
			log := newLogger(cfg)

			be, err := openBackend(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer be.Close()
			return be.seed(cmd.Context(), cfg, log)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "seed file (default SEED_FILE or the built-in seed)")

	return cmd
}
