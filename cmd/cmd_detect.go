package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/okian/clash/internal/config"
	"github.com/okian/clash/internal/domain/geotime"
	"github.com/okian/clash/internal/domain/types"
)

func detectCmd(cfg func() *config.Config) *cobra.Command {
	var start, end string

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Detect conflicts in a date range and print them as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			from, err := geotime.ParseDate(start)
			if err != nil {
				return err
			}
			to, err := geotime.ParseDate(end)
			if err != nil {
				return err
			}

			c, err := build(ctx, cfg())
			if err != nil {
				return err
			}
			defer c.close(ctx)

			rep, err := c.svc.DetectConflicts(ctx, from, to)
			if err != nil {
				return err
			}
			sum := types.Summary{
				TotalGroups:       rep.Summary.TotalGroups,
				Unresolved:        rep.Summary.Unresolved,
				PartiallyResolved: rep.Summary.PartiallyResolved,
				Resolved:          rep.Summary.Resolved,
			}
			return printJSON(cmd.OutOrStdout(), types.NewConflictsResponse(rep.Groups, rep.Scores, sum, rep.Unlocated))
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&end, "end", "", "last day, YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func scoreCmd(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "score <guid>",
		Short: "Score one catalog event with the current weights",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := build(ctx, cfg())
			if err != nil {
				return err
			}
			defer c.close(ctx)

			sc, err := c.svc.ScoreEvent(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), types.FromScore(sc))
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
