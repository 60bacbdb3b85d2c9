package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/trellis"
	"github.com/dmitrymomot/trellis/cms"
)

func routesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List the static and runtime routes",
		Long: `Print the admin routes and the runtime routes built from the stored
content, with the module chain each one renders.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log := newLogger(cfg)
			ctx := cmd.Context()

			be, err := openBackend(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer be.Close()
			if be.pool == nil {
				if err := be.seed(ctx, cfg, log); err != nil {
					return err
				}
			}

			site := cms.New(be.store, trellis.NewRuntimeTable(), cms.WithLogger(log))
			if err := site.Rebuild(ctx); err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KIND\tPATTERN\tMODULES")
			for _, r := range site.Routes() {
				fmt.Fprintf(w, "static\t%s\t%s\n", r.Pattern, strings.Join(r.Modules, " > "))
			}
			for _, r := range site.Table().Routes() {
				fmt.Fprintf(w, "runtime\t%s\t%s\n", r.Pattern, strings.Join(r.Modules, " > "))
			}
			return w.Flush()
		},
	}
}
