package integrity

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"coho/internal/config"
	"coho/internal/logging"
	"coho/internal/release"
	"coho/internal/services"
	"coho/internal/tools"
)

// Verdict classifies the outcome of a validation pass.
type Verdict string

const (
	// VerdictOK means every track decodes and the rip log, when present,
	// agrees with the files.
	VerdictOK Verdict = "ok"
	// VerdictMismatchWarning means the audio decodes but the rip log
	// disagrees with the files. The candidate may proceed.
	VerdictMismatchWarning Verdict = "mismatch_warning"
	// VerdictFatal means at least one track is unreadable or corrupt.
	VerdictFatal Verdict = "fatal"
)

// TrackResult records the per-track decode check and audio-stream checksum.
type TrackResult struct {
	Path         string
	DecodeOK     bool
	DecodeDetail string
	CRC32        string
}

// Report is the aggregate validation outcome for one candidate.
type Report struct {
	Verdict           Verdict
	Tracks            []TrackResult
	Issues            []string
	LogFound          bool
	LogScore          int
	LogScorePresent   bool
	Trumpable         bool
	RecommendSanitize bool
}

// OK reports whether the candidate may proceed without warnings.
func (r *Report) OK() bool {
	return r != nil && r.Verdict == VerdictOK
}

type runner interface {
	Run(ctx context.Context, name string, args ...string) (tools.Result, error)
}

// Validator checks candidate audio with external decoders and compares the
// result against the accompanying rip log.
type Validator struct {
	cfg    *config.Config
	run    runner
	logger *slog.Logger
}

// NewValidator constructs a Validator using the configured tool names.
func NewValidator(cfg *config.Config, run runner, logger *slog.Logger) *Validator {
	if run == nil {
		run = tools.Runner{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Validator{cfg: cfg, run: run, logger: logger.With(logging.String(logging.FieldComponent, "integrity"))}
}

var crc32OutputPattern = regexp.MustCompile(`(?i)CRC32\s*=\s*([0-9a-f]{1,8})`)

// Validate decodes every track, computes audio-stream checksums, and checks
// them against the rip log found in the candidate folder. The same input
// always yields the same verdict.
func (v *Validator) Validate(ctx context.Context, candidate *release.ReleaseCandidate) (*Report, error) {
	if candidate == nil || len(candidate.Tracks) == 0 {
		return nil, services.Wrap(services.ErrValidation, "integrity", "validate", "candidate has no tracks", nil)
	}

	report := &Report{Verdict: VerdictOK}
	for _, track := range candidate.Tracks {
		result, err := v.checkTrack(ctx, track)
		if err != nil {
			return nil, err
		}
		report.Tracks = append(report.Tracks, result)
		if !result.DecodeOK {
			report.Verdict = VerdictFatal
			report.Issues = append(report.Issues, fmt.Sprintf("%s: %s", track.FileName, result.DecodeDetail))
		}
	}
	if report.Verdict == VerdictFatal {
		v.logger.Warn("candidate failed decode check", logging.Int("tracks", len(candidate.Tracks)), logging.Int("issues", len(report.Issues)))
		return report, services.Wrap(services.ErrValidation, "integrity", "decode", strings.Join(report.Issues, "; "), nil)
	}

	logPath := FindRipLog(candidate.FolderPath)
	if logPath == "" {
		v.logger.Debug("no rip log found", logging.String("folder", candidate.FolderPath))
		return report, nil
	}
	report.LogFound = true

	summary, err := ParseRipLog(logPath)
	if err != nil {
		report.Verdict = VerdictMismatchWarning
		report.Issues = append(report.Issues, fmt.Sprintf("rip log unreadable: %v", err))
		return report, nil
	}
	v.compareLog(candidate, summary, report)
	return report, nil
}

func (v *Validator) checkTrack(ctx context.Context, track release.TrackFile) (TrackResult, error) {
	result := TrackResult{Path: track.Path, DecodeOK: true}

	switch strings.ToLower(filepath.Ext(track.Path)) {
	case ".flac":
		if _, err := v.run.Run(ctx, v.cfg.Tools.Flac, "-wt", track.Path); err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.DecodeOK = false
			result.DecodeDetail = services.Details(err)
		}
	case ".mp3":
		out, err := v.run.Run(ctx, v.cfg.Tools.Mp3val, track.Path)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.DecodeOK = false
			result.DecodeDetail = services.Details(err)
		} else if problem := mp3valProblem(out.Stdout); problem != "" {
			result.DecodeOK = false
			result.DecodeDetail = problem
		}
	default:
		return result, services.Wrap(services.ErrValidation, "integrity", "decode", "unsupported audio file "+track.FileName, nil)
	}
	if !result.DecodeOK {
		return result, nil
	}

	crc, err := v.audioCRC(ctx, track.Path)
	if err != nil {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		result.DecodeOK = false
		result.DecodeDetail = services.Details(err)
		return result, nil
	}
	result.CRC32 = crc
	return result, nil
}

// audioCRC hashes only the first audio stream so tag edits do not change
// the checksum.
func (v *Validator) audioCRC(ctx context.Context, path string) (string, error) {
	out, err := v.run.Run(ctx, v.cfg.Tools.FFmpeg,
		"-hide_banner", "-nostats", "-i", path,
		"-map", "0:0", "-f", "hash", "-hash", "crc32", "-")
	if err != nil {
		return "", err
	}
	match := crc32OutputPattern.FindStringSubmatch(out.Stdout)
	if match == nil {
		match = crc32OutputPattern.FindStringSubmatch(out.Stderr)
	}
	if match == nil {
		return "", services.Wrap(services.ErrExternalTool, "integrity", "crc", "no CRC32 in hash output", nil)
	}
	crc := strings.ToUpper(match[1])
	for len(crc) < 8 {
		crc = "0" + crc
	}
	return crc, nil
}

func (v *Validator) compareLog(candidate *release.ReleaseCandidate, summary *RipLogSummary, report *Report) {
	if summary.ScorePresent {
		report.LogScore = summary.Score
		report.LogScorePresent = true
		if summary.Score < 100 {
			report.Trumpable = true
			report.Issues = append(report.Issues, fmt.Sprintf("rip log scores %d, release is trumpable", summary.Score))
		}
	}

	fileCRCs := make(map[string]bool, len(report.Tracks))
	for _, track := range report.Tracks {
		if track.CRC32 != "" {
			fileCRCs[strings.ToUpper(track.CRC32)] = true
		}
	}
	var mismatches []string
	crcMismatch := false
	for _, crc := range summary.CRCs {
		if !fileCRCs[strings.ToUpper(crc)] {
			crcMismatch = true
			mismatches = append(mismatches, fmt.Sprintf("log CRC %s matches no audio file", crc))
		}
	}

	tolerance := time.Duration(v.cfg.Upload.DurationToleranceS) * time.Second
	if len(summary.Durations) > 0 {
		if len(summary.Durations) != len(candidate.Tracks) {
			mismatches = append(mismatches, fmt.Sprintf("log lists %d tracks, folder has %d", len(summary.Durations), len(candidate.Tracks)))
		} else {
			for i, logged := range summary.Durations {
				actual := candidate.Tracks[i].Duration
				delta := actual - logged
				if delta < 0 {
					delta = -delta
				}
				if delta > tolerance {
					mismatches = append(mismatches, fmt.Sprintf("track %d duration differs from log by %s", i+1, delta.Round(time.Millisecond)))
				}
			}
		}
	}

	if len(mismatches) > 0 {
		report.Verdict = VerdictMismatchWarning
		report.Issues = append(report.Issues, mismatches...)
	}
	if crcMismatch {
		// Clean decode with mismatched checksums is the signature of a
		// tag-padding rewrite; a re-encode resets it.
		report.RecommendSanitize = true
	}
}

func mp3valProblem(output string) string {
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "ERROR") || strings.HasPrefix(trimmed, "FATAL") {
			return trimmed
		}
	}
	return ""
}
