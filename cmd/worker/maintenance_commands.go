package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/kiranshivaraju/consentscan/internal/maintenance"
	"github.com/kiranshivaraju/consentscan/pkg/models"
)

const defaultRepairAge = 10 * time.Minute

func newOrphansCommand(ctx *commandContext) *cobra.Command {
	var (
		olderThan  time.Duration
		fail       bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "orphans",
		Short: "List running jobs with no terminal state after --older-than",
		Long: "List running jobs whose worker has not committed a terminal state within\n" +
			"--older-than. With --fail each one is marked failed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			age := ctx.config.Retention.OrphanAge
			if cmd.Flags().Changed("older-than") {
				age = olderThan
			}
			if age <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}

			return ctx.withBackends(cmd.Context(), func(b *backends) error {
				svc := maintenance.NewService(b.store, b.queue)

				var (
					jobs []*models.Job
					err  error
				)
				if fail {
					jobs, err = svc.FailOrphans(cmd.Context(), age)
				} else {
					jobs, err = svc.FindOrphans(cmd.Context(), age)
				}
				if err != nil {
					return err
				}

				if jsonOutput {
					return writeJSON(cmd, jobs)
				}
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "No orphaned jobs")
					return nil
				}
				fmt.Fprintln(out, renderTable(orphanColumns, orphanRows(jobs, time.Now().UTC())))
				if fail {
					fmt.Fprintf(out, "Marked %d jobs failed\n", len(jobs))
				}
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Age after which a running job counts as orphaned (default from ORPHAN_AGE)")
	cmd.Flags().BoolVar(&fail, "fail", false, "Mark every orphan failed")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

var orphanColumns = []column{
	{title: "Job"}, {title: "Priority"}, {title: "Worker"}, {title: "Started"}, {title: "Age", right: true},
}

func orphanRows(jobs []*models.Job, now time.Time) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		worker, started, age := "-", "-", "-"
		if job.Worker != nil {
			worker = *job.Worker
		}
		if job.StartedAt != nil {
			started = job.StartedAt.UTC().Format(time.RFC3339)
			age = now.Sub(*job.StartedAt).Truncate(time.Second).String()
		}
		rows = append(rows, []string{job.ID.String(), string(job.Priority), worker, started, age})
	}
	return rows
}

func newRepairCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Re-enqueue queued jobs whose reference may have been lost",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			return ctx.withBackends(cmd.Context(), func(b *backends) error {
				n, err := maintenance.NewService(b.store, b.queue).RepairQueued(cmd.Context(), olderThan)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Re-enqueued %d jobs\n", n)
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", defaultRepairAge, "Only jobs queued longer than this")
	return cmd
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show job counts by status and queue depth by tier",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackends(cmd.Context(), func(b *backends) error {
				stats, err := maintenance.NewService(b.store, b.queue).Stats(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, stats)
				}

				statuses := []models.JobStatus{
					models.JobStatusQueued, models.JobStatusRunning,
					models.JobStatusFinished, models.JobStatusFailed,
				}
				jobRows := make([][]string, 0, len(statuses))
				for _, s := range statuses {
					jobRows = append(jobRows, []string{string(s), strconv.Itoa(stats.Jobs[s])})
				}
				tierRows := make([][]string, 0, len(models.Priorities))
				for _, p := range models.Priorities {
					tierRows = append(tierRows, []string{string(p), strconv.FormatInt(stats.QueueDepth[p], 10)})
				}

				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderTable([]column{{title: "Status"}, {title: "Jobs", right: true}}, jobRows))
				fmt.Fprintln(out, renderTable([]column{{title: "Tier"}, {title: "Depth", right: true}}, tierRows))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
