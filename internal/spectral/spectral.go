package spectral

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"coho/internal/config"
	"coho/internal/logging"
	"coho/internal/release"
	"coho/internal/services"
	"coho/internal/tools"
)

// TrackStatus is the terminal state of one track's spectrogram unit.
type TrackStatus string

const (
	TrackOK     TrackStatus = "ok"
	TrackFailed TrackStatus = "failed"
)

// TrackSpectral holds the artifacts and outcome for one track.
type TrackSpectral struct {
	Track    string
	FullPath string
	ZoomPath string
	Status   TrackStatus
	Detail   string
}

// Report covers every track of a candidate. A report exists only once all
// tracks are terminal; re-running replaces it whole.
type Report struct {
	Tracks []TrackSpectral
}

// Failed returns the track names whose spectrogram unit did not complete.
func (r *Report) Failed() []string {
	var failed []string
	for _, track := range r.Tracks {
		if track.Status == TrackFailed {
			failed = append(failed, track.Track)
		}
	}
	return failed
}

// AllOK reports whether every track produced verified images.
func (r *Report) AllOK() bool {
	return r != nil && len(r.Tracks) > 0 && len(r.Failed()) == 0
}

type runner interface {
	Run(ctx context.Context, name string, args ...string) (tools.Result, error)
}

// Pipeline generates spectrograms through sox, compresses them with
// oxipng, and verifies the compressed output decodes unchanged.
type Pipeline struct {
	cfg    *config.Config
	run    runner
	logger *slog.Logger
}

// NewPipeline constructs a Pipeline with the configured tools.
func NewPipeline(cfg *config.Config, run runner, logger *slog.Logger) *Pipeline {
	if run == nil {
		run = tools.Runner{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{cfg: cfg, run: run, logger: logger.With(logging.String(logging.FieldComponent, "spectral"))}
}

// Generate produces a full and a zoomed spectrogram per track under
// outDir. Tracks run concurrently up to the configured worker count; a
// track that fails any of its three stages is reported failed while the
// rest continue.
func (p *Pipeline) Generate(ctx context.Context, candidate *release.ReleaseCandidate, outDir string) (*Report, error) {
	if candidate == nil || len(candidate.Tracks) == 0 {
		return nil, services.Wrap(services.ErrValidation, "spectral", "generate", "candidate has no tracks", nil)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create spectral dir: %w", err)
	}

	report := &Report{Tracks: make([]TrackSpectral, len(candidate.Tracks))}
	group, groupCtx := errgroup.WithContext(ctx)
	workers := p.cfg.Upload.Workers
	if workers < 1 {
		workers = 1
	}
	group.SetLimit(workers)

	for i, track := range candidate.Tracks {
		group.Go(func() error {
			result := p.processTrack(groupCtx, track, outDir, i+1)
			report.Tracks[i] = result
			if result.Status == TrackFailed {
				p.logger.Warn("spectrogram unit failed",
					logging.String(logging.FieldTrack, track.FileName),
					logging.String("detail", result.Detail))
			}
			// Track failures stay local; only cancellation stops the pool.
			return groupCtx.Err()
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return report, nil
}

// processTrack runs the generate, compress, verify stages for one track.
func (p *Pipeline) processTrack(ctx context.Context, track release.TrackFile, outDir string, index int) TrackSpectral {
	result := TrackSpectral{Track: track.FileName, Status: TrackOK}
	base := fmt.Sprintf("%02d-%s", index, strings.TrimSuffix(track.FileName, filepath.Ext(track.FileName)))
	result.FullPath = filepath.Join(outDir, base+".full.png")
	result.ZoomPath = filepath.Join(outDir, base+".zoom.png")

	spec := p.cfg.Spectral
	fullArgs := []string{
		track.Path, "-n", "remix", "1", "spectrogram",
		"-x", fmt.Sprint(spec.FullWidth), "-y", fmt.Sprint(spec.FullHeight),
		"-z", fmt.Sprint(spec.ZLevel), "-w", "Kaiser",
		"-o", result.FullPath,
	}
	midpoint := track.Duration / 2
	zoomArgs := []string{
		track.Path, "-n", "remix", "1", "spectrogram",
		"-x", fmt.Sprint(spec.ZoomWidth), "-y", fmt.Sprint(spec.ZoomHeight),
		"-z", fmt.Sprint(spec.ZLevel), "-w", "Kaiser",
		"-S", formatOffset(midpoint), "-d", fmt.Sprintf("0:%02d", spec.ZoomSeconds),
		"-o", result.ZoomPath,
	}

	for _, args := range [][]string{fullArgs, zoomArgs} {
		if _, err := p.run.Run(ctx, p.cfg.Tools.Sox, args...); err != nil {
			result.Status = TrackFailed
			result.Detail = "spectrogram render: " + services.Details(err)
			return result
		}
	}

	for _, path := range []string{result.FullPath, result.ZoomPath} {
		if err := p.compressAndVerify(ctx, path); err != nil {
			result.Status = TrackFailed
			result.Detail = services.Details(err)
			return result
		}
	}
	return result
}

// compressAndVerify runs oxipng over the image and confirms the result
// still decodes to the same pixels.
func (p *Pipeline) compressAndVerify(ctx context.Context, path string) error {
	before, err := decodePNG(path)
	if err != nil {
		return services.Wrap(services.ErrValidation, "spectral", "verify", fmt.Sprintf("%s did not decode before compression", filepath.Base(path)), err)
	}

	if _, err := p.run.Run(ctx, p.cfg.Tools.Oxipng,
		"-o", fmt.Sprint(p.cfg.Spectral.CompressionLevel), "--strip", "safe", path); err != nil {
		return err
	}

	after, err := decodePNG(path)
	if err != nil {
		return services.Wrap(services.ErrValidation, "spectral", "verify", fmt.Sprintf("%s did not decode after compression", filepath.Base(path)), err)
	}
	diff, err := comparePixels(before, after)
	if err != nil {
		return services.Wrap(services.ErrMismatch, "spectral", "verify", filepath.Base(path)+": "+err.Error(), nil)
	}
	if diff > p.cfg.Spectral.PixelTolerance {
		return services.Wrap(services.ErrMismatch, "spectral", "verify",
			fmt.Sprintf("%s changed %d pixels during compression", filepath.Base(path), diff), nil)
	}
	return nil
}

// formatOffset renders a duration as the m:ss.cc offset sox expects.
func formatOffset(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := d.Seconds()
	minutes := int(total) / 60
	seconds := total - float64(minutes*60)
	return fmt.Sprintf("%d:%05.2f", minutes, seconds)
}
