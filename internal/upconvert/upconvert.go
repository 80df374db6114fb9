package upconvert

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"

	"coho/internal/config"
	"coho/internal/logging"
	"coho/internal/release"
	"coho/internal/services"
	"coho/internal/tools"
)

// Verdict classifies a wasted-bits analysis.
type Verdict string

const (
	// VerdictNotApplicable marks 16-bit (or lossy) input that cannot be
	// an upconvert by definition.
	VerdictNotApplicable Verdict = "not_applicable"
	// VerdictClean means the analysis found real high-bit-depth content.
	VerdictClean Verdict = "clean"
	// VerdictLikelyUpconvert means most frames waste at least a byte of
	// depth, the signature of 16-bit audio padded to 24.
	VerdictLikelyUpconvert Verdict = "likely_upconvert"
	// VerdictInconclusive means the analysis produced too little signal
	// to call either way.
	VerdictInconclusive Verdict = "inconclusive"
)

// likelyThreshold is the mean wasted-bits level at which padded 16-bit
// content is assumed.
const likelyThreshold = 8.0

// cleanThreshold is the mean wasted-bits level below which content is
// treated as genuinely high depth.
const cleanThreshold = 1.0

// minFrameSamples is the minimum number of analyzed frames required to
// call a track clean rather than inconclusive.
const minFrameSamples = 16

// TrackAnalysis is the wasted-bits measurement for one track.
type TrackAnalysis struct {
	Path       string
	Verdict    Verdict
	MeanWasted float64
	Frames     int
}

// Report aggregates the per-track analyses into a candidate verdict.
type Report struct {
	Verdict Verdict
	Tracks  []TrackAnalysis
}

type runner interface {
	Run(ctx context.Context, name string, args ...string) (tools.Result, error)
}

// Detector runs the flac analysis tool and interprets its frame output.
type Detector struct {
	cfg    *config.Config
	run    runner
	logger *slog.Logger
}

// NewDetector constructs a Detector with the configured flac binary.
func NewDetector(cfg *config.Config, run runner, logger *slog.Logger) *Detector {
	if run == nil {
		run = tools.Runner{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Detector{cfg: cfg, run: run, logger: logger.With(logging.String(logging.FieldComponent, "upconvert"))}
}

var wastedBitsPattern = regexp.MustCompile(`wasted_bits=(\d+)`)

// Analyze inspects every lossless track above 16 bits. The verdict never
// blocks a candidate; callers surface it on the report.
func (d *Detector) Analyze(ctx context.Context, candidate *release.ReleaseCandidate) (*Report, error) {
	if candidate == nil || len(candidate.Tracks) == 0 {
		return nil, services.Wrap(services.ErrValidation, "upconvert", "analyze", "candidate has no tracks", nil)
	}

	report := &Report{Verdict: VerdictNotApplicable}
	sawClean := false
	sawInconclusive := false
	for _, track := range candidate.Tracks {
		if !track.Lossless() || track.BitDepth <= 16 {
			report.Tracks = append(report.Tracks, TrackAnalysis{Path: track.Path, Verdict: VerdictNotApplicable})
			continue
		}
		analysis, err := d.analyzeTrack(ctx, track.Path)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			d.logger.Warn("frame analysis failed",
				logging.String(logging.FieldTrack, track.FileName),
				logging.Error(err))
			analysis = TrackAnalysis{Path: track.Path, Verdict: VerdictInconclusive}
		}
		report.Tracks = append(report.Tracks, analysis)
		switch analysis.Verdict {
		case VerdictLikelyUpconvert:
			report.Verdict = VerdictLikelyUpconvert
		case VerdictClean:
			sawClean = true
		case VerdictInconclusive:
			sawInconclusive = true
		}
	}

	if report.Verdict == VerdictLikelyUpconvert {
		return report, nil
	}
	switch {
	case sawInconclusive:
		report.Verdict = VerdictInconclusive
	case sawClean:
		report.Verdict = VerdictClean
	}
	return report, nil
}

func (d *Detector) analyzeTrack(ctx context.Context, path string) (TrackAnalysis, error) {
	analysis := TrackAnalysis{Path: path}
	out, err := d.run.Run(ctx, d.cfg.Tools.Flac, "-ac", path)
	if err != nil {
		return analysis, err
	}

	matches := wastedBitsPattern.FindAllStringSubmatch(out.Stdout, -1)
	if len(matches) == 0 {
		matches = wastedBitsPattern.FindAllStringSubmatch(out.Stderr, -1)
	}
	var total int
	for _, match := range matches {
		bits, convErr := strconv.Atoi(match[1])
		if convErr != nil {
			continue
		}
		total += bits
		analysis.Frames++
	}
	if analysis.Frames == 0 {
		analysis.Verdict = VerdictInconclusive
		return analysis, nil
	}
	analysis.MeanWasted = float64(total) / float64(analysis.Frames)

	switch {
	case analysis.MeanWasted >= likelyThreshold:
		analysis.Verdict = VerdictLikelyUpconvert
	case analysis.MeanWasted <= cleanThreshold && analysis.Frames >= minFrameSamples:
		analysis.Verdict = VerdictClean
	default:
		analysis.Verdict = VerdictInconclusive
	}
	return analysis, nil
}
