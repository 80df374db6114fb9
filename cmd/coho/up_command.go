package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"coho/internal/config"
	"coho/internal/queue"
	"coho/internal/workflow"
)

func newUpCommand(ctx *commandContext) *cobra.Command {
	var (
		sourceTag    string
		destinations []string
		formats      []string
		requestID    string
		approveAll   bool
		overrideDupe bool
	)

	cmd := &cobra.Command{
		Use:   "up <path>",
		Short: "Process and upload one release folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				orch := workflow.New(cfg, store, ctx.registry(cfg), &workflow.Options{Logger: logger})
				outcome, err := orch.Process(runCtx, args[0], workflow.RunOptions{
					SourceTag:          sourceTag,
					Destinations:       destinations,
					Formats:            formats,
					RequestID:          requestID,
					ApproveAll:         approveAll,
					OverrideDuplicates: overrideDupe,
				})
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				renderOutcome(out, outcome)
				if !outcome.Succeeded() {
					return fmt.Errorf("pipeline finished %s", outcome.Aggregate)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&sourceTag, "source", "", "Source media tag (CD, WEB, Vinyl)")
	cmd.Flags().StringSliceVar(&destinations, "destination", nil, "Restrict the run to the named destinations")
	cmd.Flags().StringSliceVar(&formats, "formats", nil, "Restrict the run to the named output formats")
	cmd.Flags().StringVar(&requestID, "request", "", "Fill a specific open request")
	cmd.Flags().BoolVar(&approveAll, "approve-all", false, "Skip analysis holds (upconvert, spectral failures)")
	cmd.Flags().BoolVar(&overrideDupe, "override-dupes", false, "Proceed past likely-duplicate holds")
	return cmd
}
