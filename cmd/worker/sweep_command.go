package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kiranshivaraju/consentscan/internal/sweeper"
)

func newSweepCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete finished and failed jobs older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			window := ctx.config.Retention.Window
			if cmd.Flags().Changed("older-than") {
				window = olderThan
			}

			return ctx.withBackends(cmd.Context(), func(b *backends) error {
				sw, err := sweeper.New(b.store, window, ctx.config.Retention.Schedule)
				if err != nil {
					return err
				}
				cutoff := time.Now().UTC().Add(-window)
				n, err := sw.Sweep(cmd.Context(), cutoff)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d jobs finished before %s\n", n, cutoff.Format(time.RFC3339))
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Retention window (default from RETENTION_WINDOW)")
	return cmd
}
