package spectral

import (
	"context"
	"image"
	"image/png"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"coho/internal/config"
	"coho/internal/release"
	"coho/internal/services"
	"coho/internal/tools"
)

// scriptedRunner delegates to a handler so tests can materialize the
// files a real sox or oxipng invocation would produce.
type scriptedRunner struct {
	handler func(name string, args []string) error
	calls   atomic.Int32
}

func (s *scriptedRunner) Run(_ context.Context, name string, args ...string) (tools.Result, error) {
	s.calls.Add(1)
	if s.handler != nil {
		if err := s.handler(name, args); err != nil {
			return tools.Result{}, err
		}
	}
	return tools.Result{}, nil
}

func writePNG(t *testing.T, path string, width, height int, shade uint8) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = shade
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create png: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
}

func outputPath(args []string) string {
	for i, arg := range args {
		if arg == "-o" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Spectral.FullWidth = 8
	cfg.Spectral.FullHeight = 4
	cfg.Spectral.ZoomWidth = 4
	cfg.Spectral.ZoomHeight = 8
	return cfg
}

func testCandidate(tracks int) *release.ReleaseCandidate {
	candidate := &release.ReleaseCandidate{Title: "Album"}
	for i := 0; i < tracks; i++ {
		name := "track-" + string(rune('a'+i)) + ".flac"
		candidate.Tracks = append(candidate.Tracks, release.TrackFile{
			Path:     "/music/" + name,
			FileName: name,
			Duration: 200 * time.Second,
			BitDepth: 16,
		})
	}
	return candidate
}

func TestGenerateProducesVerifiedImages(t *testing.T) {
	cfg := testConfig()
	run := &scriptedRunner{handler: func(name string, args []string) error {
		if name == cfg.Tools.Sox {
			// Full and zoom renders share the handler; size comes from args.
			writePNG(t, outputPath(args), 8, 4, 0x20)
		}
		return nil
	}}
	pipeline := NewPipeline(&cfg, run, nil)

	report, err := pipeline.Generate(context.Background(), testCandidate(3), t.TempDir())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if !report.AllOK() {
		t.Fatalf("expected all tracks ok, failed: %v", report.Failed())
	}
	if len(report.Tracks) != 3 {
		t.Fatalf("expected 3 track reports, got %d", len(report.Tracks))
	}
	for _, track := range report.Tracks {
		if track.FullPath == "" || track.ZoomPath == "" {
			t.Fatalf("missing artifact paths: %#v", track)
		}
	}
}

func TestGenerateIsolatesTrackFailures(t *testing.T) {
	cfg := testConfig()
	run := &scriptedRunner{handler: func(name string, args []string) error {
		if name != cfg.Tools.Sox {
			return nil
		}
		out := outputPath(args)
		if strings.Contains(args[0], "track-b") {
			return services.Wrap(services.ErrExternalTool, "tools", "sox", "render blew up", nil)
		}
		writePNG(t, out, 8, 4, 0x20)
		return nil
	}}
	pipeline := NewPipeline(&cfg, run, nil)

	report, err := pipeline.Generate(context.Background(), testCandidate(3), t.TempDir())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	failed := report.Failed()
	if len(failed) != 1 || failed[0] != "track-b.flac" {
		t.Fatalf("expected only track-b to fail, got %v", failed)
	}
	if report.AllOK() {
		t.Fatal("report with a failed track must not be all-ok")
	}
	// The two healthy tracks keep their reports.
	ok := 0
	for _, track := range report.Tracks {
		if track.Status == TrackOK {
			ok++
		}
	}
	if ok != 2 {
		t.Fatalf("expected 2 successful tracks, got %d", ok)
	}
}

func TestGenerateRejectsDimensionChange(t *testing.T) {
	cfg := testConfig()
	run := &scriptedRunner{handler: func(name string, args []string) error {
		switch name {
		case cfg.Tools.Sox:
			writePNG(t, outputPath(args), 8, 4, 0x20)
		case cfg.Tools.Oxipng:
			// A resize during compression must fail verification.
			writePNG(t, args[len(args)-1], 4, 2, 0x20)
		}
		return nil
	}}
	pipeline := NewPipeline(&cfg, run, nil)

	report, err := pipeline.Generate(context.Background(), testCandidate(1), t.TempDir())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if report.AllOK() {
		t.Fatal("expected verification failure on dimension change")
	}
	if !strings.Contains(report.Tracks[0].Detail, "dimensions changed") {
		t.Fatalf("expected dimension detail, got %q", report.Tracks[0].Detail)
	}
}

func TestGeneratePixelToleranceBound(t *testing.T) {
	cfg := testConfig()
	cfg.Spectral.PixelTolerance = 0
	run := &scriptedRunner{handler: func(name string, args []string) error {
		switch name {
		case cfg.Tools.Sox:
			writePNG(t, outputPath(args), 8, 4, 0x20)
		case cfg.Tools.Oxipng:
			writePNG(t, args[len(args)-1], 8, 4, 0x21)
		}
		return nil
	}}
	pipeline := NewPipeline(&cfg, run, nil)

	report, err := pipeline.Generate(context.Background(), testCandidate(1), t.TempDir())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if report.AllOK() {
		t.Fatal("expected pixel delta above bound to fail verification")
	}

	cfg.Spectral.PixelTolerance = 64
	report, err = pipeline.Generate(context.Background(), testCandidate(1), t.TempDir())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if !report.AllOK() {
		t.Fatalf("expected delta within bound to verify, failed: %v (%s)", report.Failed(), report.Tracks[0].Detail)
	}
}

func TestFormatOffset(t *testing.T) {
	if got := formatOffset(125 * time.Second); got != "2:05.00" {
		t.Fatalf("formatOffset = %q", got)
	}
	if got := formatOffset(0); got != "0:00.00" {
		t.Fatalf("formatOffset zero = %q", got)
	}
}
