package integrity

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"coho/internal/config"
	"coho/internal/release"
	"coho/internal/services"
	"coho/internal/tools"
)

type fakeRunner struct {
	results map[string]tools.Result
	errs    map[string]error
	calls   []string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (tools.Result, error) {
	f.calls = append(f.calls, name)
	if err, ok := f.errs[name]; ok {
		return tools.Result{}, err
	}
	return f.results[name], nil
}

func testCandidate(t *testing.T, durations ...time.Duration) *release.ReleaseCandidate {
	t.Helper()
	folder := t.TempDir()
	candidate := &release.ReleaseCandidate{
		Artists:    []string{"Artist"},
		Title:      "Album",
		Year:       2001,
		Format:     "FLAC",
		FolderPath: folder,
	}
	for i, duration := range durations {
		name := filepath.Base(folder) + "-" + string(rune('a'+i)) + ".flac"
		path := filepath.Join(folder, name)
		if err := os.WriteFile(path, []byte{0x66}, 0o644); err != nil {
			t.Fatalf("write track: %v", err)
		}
		candidate.Tracks = append(candidate.Tracks, release.TrackFile{
			Path:     path,
			FileName: name,
			Duration: duration,
			BitDepth: 16,
		})
	}
	return candidate
}

func writeLog(t *testing.T, folder, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(folder, "rip.log"), []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
}

func TestValidateCleanCandidate(t *testing.T) {
	candidate := testCandidate(t, 252*time.Second)
	writeLog(t, candidate.FolderPath, "Track 1\n     Copy CRC AABBCCDD\nLog score: 100\n")

	run := &fakeRunner{results: map[string]tools.Result{
		"ffmpeg": {Stdout: "CRC32=aabbccdd\n"},
	}}
	cfg := config.Default()
	validator := NewValidator(&cfg, run, nil)

	report, err := validator.Validate(context.Background(), candidate)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if report.Verdict != VerdictOK {
		t.Fatalf("expected ok verdict, got %s (issues %v)", report.Verdict, report.Issues)
	}
	if !report.LogFound || !report.LogScorePresent || report.LogScore != 100 || report.Trumpable {
		t.Fatalf("unexpected log fields: %#v", report)
	}
	if report.Tracks[0].CRC32 != "AABBCCDD" {
		t.Fatalf("expected normalized CRC, got %q", report.Tracks[0].CRC32)
	}
}

func TestValidateDecodeFailureIsFatal(t *testing.T) {
	candidate := testCandidate(t, 180*time.Second)

	run := &fakeRunner{
		errs: map[string]error{
			"flac": services.Wrap(services.ErrExternalTool, "tools", "flac", "flac exited with status 1: CRC mismatch", nil),
		},
	}
	cfg := config.Default()
	validator := NewValidator(&cfg, run, nil)

	report, err := validator.Validate(context.Background(), candidate)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if report == nil || report.Verdict != VerdictFatal {
		t.Fatalf("expected fatal verdict, got %#v", report)
	}
}

func TestValidateCRCMismatchWarnsAndRecommendsSanitize(t *testing.T) {
	candidate := testCandidate(t, 180*time.Second)
	writeLog(t, candidate.FolderPath, "Copy CRC 11111111\n")

	run := &fakeRunner{results: map[string]tools.Result{
		"ffmpeg": {Stdout: "CRC32=22222222\n"},
	}}
	cfg := config.Default()
	validator := NewValidator(&cfg, run, nil)

	report, err := validator.Validate(context.Background(), candidate)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if report.Verdict != VerdictMismatchWarning {
		t.Fatalf("expected mismatch warning, got %s", report.Verdict)
	}
	if !report.RecommendSanitize {
		t.Fatal("expected sanitization recommendation for clean decode with CRC mismatch")
	}
}

func TestValidateDurationToleranceAgainstLog(t *testing.T) {
	// TOC length 4:12.45 is 252.6s; a 252s file is inside the 2s default
	// tolerance, a 248s file is not.
	logContent := "  1  |  0:00.00 |  4:12.45 |    0    |  18944\nCopy CRC AABBCCDD\n"
	run := &fakeRunner{results: map[string]tools.Result{
		"ffmpeg": {Stdout: "CRC32=AABBCCDD\n"},
	}}
	cfg := config.Default()
	validator := NewValidator(&cfg, run, nil)

	within := testCandidate(t, 252*time.Second)
	writeLog(t, within.FolderPath, logContent)
	report, err := validator.Validate(context.Background(), within)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if report.Verdict != VerdictOK {
		t.Fatalf("expected ok inside tolerance, got %s (issues %v)", report.Verdict, report.Issues)
	}

	outside := testCandidate(t, 248*time.Second)
	writeLog(t, outside.FolderPath, logContent)
	report, err = validator.Validate(context.Background(), outside)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if report.Verdict != VerdictMismatchWarning {
		t.Fatalf("expected mismatch outside tolerance, got %s", report.Verdict)
	}
}

func TestValidateIsIdempotent(t *testing.T) {
	candidate := testCandidate(t, 252*time.Second)
	writeLog(t, candidate.FolderPath, "Copy CRC 99999999\nLog score: 97\n")

	run := &fakeRunner{results: map[string]tools.Result{
		"ffmpeg": {Stdout: "CRC32=AABBCCDD\n"},
	}}
	cfg := config.Default()
	validator := NewValidator(&cfg, run, nil)

	first, err := validator.Validate(context.Background(), candidate)
	if err != nil {
		t.Fatalf("first Validate failed: %v", err)
	}
	second, err := validator.Validate(context.Background(), candidate)
	if err != nil {
		t.Fatalf("second Validate failed: %v", err)
	}
	if first.Verdict != second.Verdict || first.Trumpable != second.Trumpable ||
		len(first.Issues) != len(second.Issues) {
		t.Fatalf("verdict changed across runs: %#v vs %#v", first, second)
	}
	if !first.Trumpable {
		t.Fatal("expected sub-100 log score to mark release trumpable")
	}
}

func TestMp3valOutputProblems(t *testing.T) {
	if problem := mp3valProblem("Analyzing file\nDone!\n"); problem != "" {
		t.Fatalf("expected clean output, got %q", problem)
	}
	if problem := mp3valProblem("ERROR: MPEG stream error\n"); problem == "" {
		t.Fatal("expected ERROR line to be surfaced")
	}
}
