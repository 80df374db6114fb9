package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"coho/internal/integrity"
	"coho/internal/release"
	"coho/internal/spectral"
	"coho/internal/upconvert"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "One-shot analysis of a release folder",
	}

	checkCmd.AddCommand(newCheckIntegrityCommand(ctx))
	checkCmd.AddCommand(newCheckUpconvertCommand(ctx))
	checkCmd.AddCommand(newCheckSpectralsCommand(ctx))

	return checkCmd
}

func newCheckIntegrityCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "integrity <path>",
		Short: "Decode-check all tracks and compare the rip log",
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
			candidate, err := release.Scan(args[0])
			if err != nil {
				return err
			}

			validator := integrity.NewValidator(cfg, nil, logger)
			report, err := validator.Validate(cmd.Context(), candidate)
			if report == nil && err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(report.Tracks))
			for _, track := range report.Tracks {
				state := "ok"
				if !track.DecodeOK {
					state = track.DecodeDetail
				}
				rows = append(rows, []string{filepath.Base(track.Path), track.CRC32, state})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Track", "CRC32", "Decode"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft},
			))
			if report.LogFound {
				if report.LogScorePresent {
					fmt.Fprintf(out, "Rip log score: %d\n", report.LogScore)
				} else {
					fmt.Fprintln(out, "Rip log found")
				}
			}
			for _, issue := range report.Issues {
				fmt.Fprintf(out, "  issue: %s\n", issue)
			}
			if report.RecommendSanitize {
				fmt.Fprintln(out, "Recommendation: re-encode the tracks and reset padding before upload")
			}
			fmt.Fprintf(out, "Verdict: %s\n", report.Verdict)
			return err
		},
	}
}

func newCheckUpconvertCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "upconvert <path>",
		Short: "Estimate whether a 24-bit release was padded up from 16 bits",
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
			candidate, err := release.Scan(args[0])
			if err != nil {
				return err
			}

			detector := upconvert.NewDetector(cfg, nil, logger)
			report, err := detector.Analyze(cmd.Context(), candidate)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(report.Tracks))
			for _, track := range report.Tracks {
				rows = append(rows, []string{
					filepath.Base(track.Path),
					fmt.Sprintf("%.2f", track.MeanWasted),
					fmt.Sprint(track.Frames),
					string(track.Verdict),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Track", "Mean wasted bits", "Frames", "Verdict"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft},
			))
			fmt.Fprintf(out, "Verdict: %s\n", report.Verdict)
			return nil
		},
	}
}

func newCheckSpectralsCommand(ctx *commandContext) *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "spectrals <path>",
		Short: "Render, compress, and verify spectrograms",
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
			candidate, err := release.Scan(args[0])
			if err != nil {
				return err
			}

			target := outDir
			if target == "" {
				target = filepath.Join(cfg.Paths.StagingDir, candidate.Fingerprint(), "spectrals")
			}

			pipeline := spectral.NewPipeline(cfg, nil, logger)
			report, err := pipeline.Generate(cmd.Context(), candidate, target)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(report.Tracks))
			for _, track := range report.Tracks {
				detail := track.FullPath
				if track.Status == spectral.TrackFailed {
					detail = track.Detail
				}
				rows = append(rows, []string{track.Track, string(track.Status), detail})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Track", "Status", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft},
			))
			if failed := report.Failed(); len(failed) > 0 {
				return fmt.Errorf("%d of %d tracks failed spectral verification", len(failed), len(report.Tracks))
			}
			fmt.Fprintf(out, "Spectrograms written to %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory for the images")
	return cmd
}
