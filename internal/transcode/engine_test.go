package transcode

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	id3v2 "github.com/bogem/id3v2/v2"

	"coho/internal/config"
	"coho/internal/release"
	"coho/internal/services"
	"coho/internal/tools"
)

type fakeRunner struct {
	mu       sync.Mutex
	runCalls [][]string
	pipes    [][2][]string
	runErr   func(args []string) error
	pipeErr  func(second []string) error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (tools.Result, error) {
	f.mu.Lock()
	f.runCalls = append(f.runCalls, append([]string{name}, args...))
	f.mu.Unlock()
	if f.runErr != nil {
		if err := f.runErr(args); err != nil {
			return tools.Result{}, err
		}
	}
	return tools.Result{}, nil
}

func (f *fakeRunner) Pipe(_ context.Context, first []string, second []string) error {
	f.mu.Lock()
	f.pipes = append(f.pipes, [2][]string{first, second})
	f.mu.Unlock()
	if f.pipeErr != nil {
		if err := f.pipeErr(second); err != nil {
			return err
		}
	}
	// A real lame run leaves the target file behind.
	out := second[len(second)-1]
	return os.WriteFile(out, []byte{}, 0o644)
}

func sourceCandidate(t *testing.T, sampleRate int) *release.ReleaseCandidate {
	t.Helper()
	folder := filepath.Join(t.TempDir(), "Artist - Album (2001) [24bit FLAC]")
	if err := os.MkdirAll(folder, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	candidate := &release.ReleaseCandidate{
		Artists:    []string{"Artist"},
		Title:      "Album",
		Year:       2001,
		Format:     "24bit FLAC",
		FolderPath: folder,
		Label:      "Label Records",
	}
	for _, name := range []string{"01 One.flac", "02 Two.flac"} {
		path := filepath.Join(folder, name)
		if err := os.WriteFile(path, []byte{0x66}, 0o644); err != nil {
			t.Fatalf("write track: %v", err)
		}
		candidate.Tracks = append(candidate.Tracks, release.TrackFile{
			Path:       path,
			FileName:   name,
			SampleRate: sampleRate,
			BitDepth:   24,
			Tags: release.TrackTags{
				Artists:     []string{"Artist"},
				Title:       strings.TrimSuffix(name[3:], ".flac"),
				TrackNumber: int(name[1] - '0'),
				TrackTotal:  2,
				Year:        2001,
			},
		})
	}
	return candidate
}

func TestDownconvertPicksRateByDivisibility(t *testing.T) {
	cases := []struct {
		sampleRate int
		wantRate   string
	}{
		{88200, "44100"},
		{176400, "44100"},
		{96000, "48000"},
	}
	for _, tc := range cases {
		run := &fakeRunner{}
		cfg := config.Default()
		engine := NewEngine(&cfg, run, nil)
		candidate := sourceCandidate(t, tc.sampleRate)

		result, err := engine.Transcode(context.Background(), candidate, "16BIT FLAC", t.TempDir())
		if err != nil {
			t.Fatalf("Transcode(%d) failed: %v", tc.sampleRate, err)
		}
		if result.Tracks != 2 {
			t.Fatalf("expected 2 tracks, got %d", result.Tracks)
		}
		for _, call := range run.runCalls {
			joined := strings.Join(call, " ")
			if !strings.Contains(joined, "rate -v -L "+tc.wantRate+" dither") {
				t.Fatalf("sox call missing rate %s: %v", tc.wantRate, call)
			}
			if call[1] != "-G" || !strings.Contains(joined, "-b 16") {
				t.Fatalf("sox call missing guard or depth: %v", call)
			}
			if !strings.Contains(joined, "-C 8") {
				t.Fatalf("sox call missing flac compression level: %v", call)
			}
		}
	}
}

func TestDownconvertHonorsConfiguredCompressionLevel(t *testing.T) {
	run := &fakeRunner{}
	cfg := config.Default()
	cfg.Transcode.FlacCompressionLevel = 5
	engine := NewEngine(&cfg, run, nil)
	candidate := sourceCandidate(t, 88200)

	if _, err := engine.Transcode(context.Background(), candidate, "16BIT FLAC", t.TempDir()); err != nil {
		t.Fatalf("Transcode failed: %v", err)
	}
	for _, call := range run.runCalls {
		if !strings.Contains(strings.Join(call, " "), "-C 5") {
			t.Fatalf("sox call missing configured compression level: %v", call)
		}
	}
}

func TestDownconvertRejectsIndivisibleRate(t *testing.T) {
	run := &fakeRunner{}
	cfg := config.Default()
	engine := NewEngine(&cfg, run, nil)
	candidate := sourceCandidate(t, 44056)

	_, err := engine.Transcode(context.Background(), candidate, "16BIT FLAC", t.TempDir())
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if len(run.runCalls) != 0 {
		t.Fatalf("expected no tool calls for invalid branch, got %d", len(run.runCalls))
	}
}

func TestLossyBranchPipesAndTags(t *testing.T) {
	run := &fakeRunner{}
	cfg := config.Default()
	engine := NewEngine(&cfg, run, nil)
	candidate := sourceCandidate(t, 44100)

	result, err := engine.Transcode(context.Background(), candidate, "V0", t.TempDir())
	if err != nil {
		t.Fatalf("Transcode failed: %v", err)
	}
	if len(run.pipes) != 2 {
		t.Fatalf("expected 2 pipes, got %d", len(run.pipes))
	}
	for _, pipe := range run.pipes {
		if pipe[0][0] != "flac" || pipe[1][0] != "lame" {
			t.Fatalf("unexpected pipe: %v", pipe)
		}
		if !strings.Contains(strings.Join(pipe[1], " "), "-V 0") {
			t.Fatalf("lame call missing V0 preset: %v", pipe[1])
		}
	}

	outPath := filepath.Join(result.OutputDir, "01 One.mp3")
	tag, err := id3v2.Open(outPath, id3v2.Options{Parse: true})
	if err != nil {
		t.Fatalf("open tagged output: %v", err)
	}
	defer tag.Close()
	if tag.Title() != "One" || tag.Artist() != "Artist" || tag.Album() != "Album" || tag.Year() != "2001" {
		t.Fatalf("unexpected tags: title=%q artist=%q album=%q year=%q",
			tag.Title(), tag.Artist(), tag.Album(), tag.Year())
	}
}

func TestBranchFailureWhenTrackFails(t *testing.T) {
	run := &fakeRunner{
		pipeErr: func(second []string) error {
			if strings.Contains(second[len(second)-1], "02 Two") {
				return services.Wrap(services.ErrExternalTool, "tools", "lame", "encode blew up", nil)
			}
			return nil
		},
	}
	cfg := config.Default()
	engine := NewEngine(&cfg, run, nil)
	candidate := sourceCandidate(t, 44100)

	_, err := engine.Transcode(context.Background(), candidate, "320", t.TempDir())
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected branch failure, got %v", err)
	}
}

func TestPayloadFilesCopiedThrough(t *testing.T) {
	run := &fakeRunner{}
	cfg := config.Default()
	engine := NewEngine(&cfg, run, nil)
	candidate := sourceCandidate(t, 44100)
	for _, name := range []string{"rip.log", "album.cue", "cover.jpg"} {
		if err := os.WriteFile(filepath.Join(candidate.FolderPath, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write payload: %v", err)
		}
	}

	result, err := engine.Transcode(context.Background(), candidate, "320", t.TempDir())
	if err != nil {
		t.Fatalf("Transcode failed: %v", err)
	}
	for _, name := range []string{"rip.log", "album.cue", "cover.jpg"} {
		if _, err := os.Stat(filepath.Join(result.OutputDir, name)); err != nil {
			t.Fatalf("payload %s not copied: %v", name, err)
		}
	}
}

func TestOutputFolderNameSubstitution(t *testing.T) {
	cases := []struct {
		source, format, want string
	}{
		{"Artist - Album (2001) [24bit FLAC]", "16BIT FLAC", "Artist - Album (2001) [FLAC]"},
		{"Artist - Album (2001) [FLAC]", "V0", "Artist - Album (2001) [MP3 V0]"},
		{"Artist - Album (2001) [WEB FLAC]", "320", "Artist - Album (2001) [MP3 320]"},
		{"Artist - Album (2001)", "320", "Artist - Album (2001) [MP3 320]"},
	}
	for _, tc := range cases {
		if got := OutputFolderName(tc.source, tc.format); got != tc.want {
			t.Fatalf("OutputFolderName(%q, %q) = %q, want %q", tc.source, tc.format, got, tc.want)
		}
	}
}
