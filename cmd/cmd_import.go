package main

import (
	"github.com/spf13/cobra"

	"github.com/okian/clash/internal/config"
)

func importCmd(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "import <seed.yaml>",
		Short: "Import venues, organizers, events and ratings from a YAML seed file",
		Long: `Import a YAML seed file into the catalog.

Venues feed the location gazetteer, organizers carry reputation ratings,
and events may embed per-dimension ratings. Rows are upserted, so running
the same file twice is harmless.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := build(ctx, cfg())
			if err != nil {
				return err
			}
			defer c.close(ctx)

			rep, err := importSeed(ctx, c.store, args[0], c.log.Named("seed"))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rep)
		},
	}
}
