package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"coho/internal/release"
	"coho/internal/transcode"
)

func newTranscodeCommand(ctx *commandContext) *cobra.Command {
	var (
		format string
		outDir string
	)

	cmd := &cobra.Command{
		Use:   "transcode <path>",
		Short: "Convert a release folder to another format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(format) == "" {
				return fmt.Errorf("--format is required (16bit FLAC, 320, or V0)")
			}
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
				target = filepath.Join(cfg.Paths.StagingDir, candidate.Fingerprint())
			}

			engine := transcode.NewEngine(cfg, nil, logger)
			result, err := engine.Transcode(cmd.Context(), candidate, format, target)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d tracks to %s\n", result.Tracks, result.OutputDir)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "Target format")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Staging directory for the converted folder")
	return cmd
}
