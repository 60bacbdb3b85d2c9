package main

import (
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the CMS and job queue schemas",
		Long: `Apply pending migrations of the CMS tables (goose) and of the
River job queue. Requires DATABASE_URL.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errNoDatabase
			}
			log := newLogger(cfg)

			be, err := openBackend(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer be.Close()
			return be.migrate(cmd.Context(), cfg, log)
		},
	}
}
