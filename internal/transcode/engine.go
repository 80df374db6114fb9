package transcode

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"coho/internal/config"
	"coho/internal/logging"
	"coho/internal/release"
	"coho/internal/services"
	"coho/internal/tools"
)

type runner interface {
	Run(ctx context.Context, name string, args ...string) (tools.Result, error)
	Pipe(ctx context.Context, first []string, second []string) error
}

// Result describes one finished format branch.
type Result struct {
	Format    string
	OutputDir string
	Tracks    int
}

// Engine drives the per-format transcode branches.
type Engine struct {
	cfg    *config.Config
	run    runner
	logger *slog.Logger
}

// NewEngine constructs an Engine with the configured tool names.
func NewEngine(cfg *config.Config, run runner, logger *slog.Logger) *Engine {
	if run == nil {
		run = tools.Runner{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{cfg: cfg, run: run, logger: logger.With(logging.String(logging.FieldComponent, "transcode"))}
}

// Transcode produces the target format of the candidate under stagingDir
// and returns the populated output folder. Every track must finish before
// the branch counts as done; the check happens once, after the worker
// pool has joined.
func (e *Engine) Transcode(ctx context.Context, candidate *release.ReleaseCandidate, targetFormat, stagingDir string) (*Result, error) {
	if candidate == nil || len(candidate.Tracks) == 0 {
		return nil, services.Wrap(services.ErrValidation, "transcode", "run", "candidate has no tracks", nil)
	}
	target := strings.ToUpper(strings.TrimSpace(targetFormat))
	convert, err := e.trackConverter(target)
	if err != nil {
		return nil, err
	}
	if target == "16BIT FLAC" {
		// The whole branch is invalid when any track's rate cannot be
		// divided down; fail before writing anything.
		for _, track := range candidate.Tracks {
			if _, rateErr := downconvertRate(track.SampleRate); rateErr != nil {
				return nil, rateErr
			}
		}
	}

	outDir := filepath.Join(stagingDir, OutputFolderName(filepath.Base(candidate.FolderPath), target))
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	var completed atomic.Int32
	group, groupCtx := errgroup.WithContext(ctx)
	workers := e.cfg.Upload.Workers
	if workers < 1 {
		workers = 1
	}
	group.SetLimit(workers)

	for _, track := range candidate.Tracks {
		group.Go(func() error {
			if err := convert(groupCtx, candidate, track, outDir); err != nil {
				return err
			}
			completed.Add(1)
			return nil
		})
	}
	err = group.Wait()
	// Single synchronization point: the branch is done only if the joined
	// pool completed every track.
	if err != nil {
		return nil, err
	}
	if int(completed.Load()) != len(candidate.Tracks) {
		return nil, services.Wrap(services.ErrValidation, "transcode", target,
			fmt.Sprintf("only %d of %d tracks completed", completed.Load(), len(candidate.Tracks)), nil)
	}

	if err := e.copyPayloadFiles(candidate.FolderPath, outDir); err != nil {
		return nil, err
	}

	e.logger.Info("format branch complete",
		logging.String(logging.FieldFormat, target),
		logging.Int("tracks", len(candidate.Tracks)),
		logging.String("output", outDir))
	return &Result{Format: target, OutputDir: outDir, Tracks: len(candidate.Tracks)}, nil
}

type trackConverter func(ctx context.Context, candidate *release.ReleaseCandidate, track release.TrackFile, outDir string) error

func (e *Engine) trackConverter(target string) (trackConverter, error) {
	switch target {
	case "16BIT FLAC":
		return e.downconvertTrack, nil
	case "320":
		return func(ctx context.Context, candidate *release.ReleaseCandidate, track release.TrackFile, outDir string) error {
			return e.lossyTrack(ctx, candidate, track, outDir, []string{"-h", "-b", "320", "--noreplaygain"})
		}, nil
	case "V0":
		return func(ctx context.Context, candidate *release.ReleaseCandidate, track release.TrackFile, outDir string) error {
			return e.lossyTrack(ctx, candidate, track, outDir, []string{"-V", "0", "--vbr-new", "--noreplaygain"})
		}, nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "transcode", "run", "unsupported target format "+target, nil)
	}
}

// downconvertRate picks the 16-bit target rate by divisibility. Rates in
// neither the 44.1 kHz nor the 48 kHz family cannot be resampled cleanly.
func downconvertRate(sampleRate int) (int, error) {
	switch {
	case sampleRate <= 0:
		return 0, services.Wrap(services.ErrValidation, "transcode", "downconvert", "track has no sample rate", nil)
	case sampleRate%44100 == 0:
		return 44100, nil
	case sampleRate%48000 == 0:
		return 48000, nil
	default:
		return 0, services.Wrap(services.ErrValidation, "transcode", "downconvert",
			fmt.Sprintf("sample rate %d divides into neither 44100 nor 48000", sampleRate), nil)
	}
}

func (e *Engine) downconvertTrack(ctx context.Context, _ *release.ReleaseCandidate, track release.TrackFile, outDir string) error {
	rate, err := downconvertRate(track.SampleRate)
	if err != nil {
		return err
	}
	outPath := filepath.Join(outDir, track.FileName)
	_, err = e.run.Run(ctx, e.cfg.Tools.Sox,
		"-G", track.Path,
		"-b", "16", "-C", fmt.Sprint(e.cfg.Transcode.FlacCompressionLevel), outPath,
		"rate", "-v", "-L", fmt.Sprint(rate), "dither")
	return err
}

func (e *Engine) lossyTrack(ctx context.Context, candidate *release.ReleaseCandidate, track release.TrackFile, outDir string, lameArgs []string) error {
	base := strings.TrimSuffix(track.FileName, filepath.Ext(track.FileName))
	outPath := filepath.Join(outDir, base+".mp3")

	decode := []string{e.cfg.Tools.Flac, "-dcs", "--", track.Path}
	encode := append([]string{e.cfg.Tools.Lame, "--quiet"}, lameArgs...)
	encode = append(encode, "-", outPath)
	if err := e.run.Pipe(ctx, decode, encode); err != nil {
		return err
	}
	return applyTags(outPath, candidate, track)
}

// copyPayloadFiles carries non-audio release files (logs, cue sheets,
// artwork) into the output folder untouched.
func (e *Engine) copyPayloadFiles(sourceDir, outDir string) error {
	return filepath.WalkDir(sourceDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".flac", ".mp3":
			return nil
		}
		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return err
		}
		target := filepath.Join(outDir, rel)
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
