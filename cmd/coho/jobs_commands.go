package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"coho/internal/config"
	"coho/internal/queue"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and manage upload jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJobsList(ctx, cmd, nil, false)
		},
	}

	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsStatusCommand(ctx))
	jobsCmd.AddCommand(newJobsClearCommand(ctx))
	jobsCmd.AddCommand(newJobsResetCommand(ctx))

	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var (
		statuses []string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, optionally filtered by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJobsList(ctx, cmd, statuses, asJSON)
		},
	}

	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter by job status")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func runJobsList(ctx *commandContext, cmd *cobra.Command, statusNames []string, asJSON bool) error {
	return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
		var statuses []queue.Status
		for _, name := range statusNames {
			status, ok := queue.ParseStatus(name)
			if !ok {
				return fmt.Errorf("unknown job status %q (known: %s)", name, knownStatusList())
			}
			statuses = append(statuses, status)
		}

		jobs, err := store.List(cmd.Context(), statuses...)
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(cmd, jobs)
		}
		if len(jobs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No jobs")
			return nil
		}

		rows := make([][]string, 0, len(jobs))
		for _, job := range jobs {
			statusLabel := string(job.Status)
			if job.IsProcessing() {
				statusLabel += " *"
			}
			rows = append(rows, []string{
				fmt.Sprint(job.ID),
				job.ReleaseTitle,
				job.Destination,
				job.Format,
				statusLabel,
				job.UpdatedAt.Format("2006-01-02 15:04"),
				job.ErrorMessage,
			})
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderTable(
			[]string{"ID", "Release", "Destination", "Format", "Status", "Updated", "Detail"},
			rows,
			[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
		))
		return nil
	})
}

func knownStatusList() string {
	statuses := queue.AllStatuses()
	names := make([]string, len(statuses))
	for i, status := range statuses {
		names[i] = string(status)
	}
	return strings.Join(names, ", ")
}

func newJobsStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show a job count summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				summary, err := store.Summarize(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, summary)
				}
				rows := [][]string{
					{"pending", fmt.Sprint(summary.Pending)},
					{"processing", fmt.Sprint(summary.Processing)},
					{"held", fmt.Sprint(summary.Held)},
					{"done", fmt.Sprint(summary.Done)},
					{"failed", fmt.Sprint(summary.Failed)},
					{"total", fmt.Sprint(summary.Total)},
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Status", "Count"},
					rows,
					[]columnAlignment{alignLeft, alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newJobsClearCommand(ctx *commandContext) *cobra.Command {
	var (
		doneOnly   bool
		failedOnly bool
	)

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove jobs from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			if doneOnly && failedOnly {
				return fmt.Errorf("--done and --failed are mutually exclusive")
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				var (
					removed int64
					err     error
					what    = "jobs"
				)
				switch {
				case doneOnly:
					removed, err = store.ClearDone(cmd.Context())
					what = "completed jobs"
				case failedOnly:
					removed, err = store.ClearFailed(cmd.Context())
					what = "failed jobs"
				default:
					removed, err = store.Clear(cmd.Context())
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d %s\n", removed, what)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&doneOnly, "done", false, "Remove only completed jobs")
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "Remove only failed jobs")
	return cmd
}

func newJobsResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Rewind in-flight jobs to their last checkpoint",
		Long: strings.TrimSpace(`
Rewind jobs stranded mid-stage (for example after a crash) to the last
completed checkpoint so the next run picks them up cleanly.`),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				reset, err := store.ResetStuckProcessing(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d jobs\n", reset)
				return nil
			})
		},
	}
}
