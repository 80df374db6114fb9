package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"coho/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StagingDir = filepath.Join(base, "staging")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.TorrentDir = filepath.Join(base, "torrents")
	cfgVal.Destinations = []config.Destination{
		{
			Name:      "alpha",
			Announce:  "https://alpha.test/announce/abc123",
			SourceTag: "ALP",
			Formats:   []string{"FLAC"},
		},
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithDestinations replaces the configured upload destinations.
func WithDestinations(destinations ...config.Destination) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Destinations = destinations
	}
}

// WithWorkers overrides the upload worker count.
func WithWorkers(workers int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Upload.Workers = workers
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the default external audio
// binaries are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"flac", "mp3val", "sox", "lame", "oxipng", "ffmpeg"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// WriteStub writes an executable shell script with the given body into the
// config's stub bin directory, creating it if needed, and ensures the
// directory is on PATH.
func WriteStub(t testing.TB, cfg *config.Config, name, body string) string {
	t.Helper()

	binDir := filepath.Join(BaseDir(cfg), "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	target := filepath.Join(binDir, name)
	if err := os.WriteFile(target, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}

	oldPath := os.Getenv("PATH")
	if !filepath.IsAbs(binDir) || !containsPathEntry(oldPath, binDir) {
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			t.Fatalf("set PATH: %v", err)
		}
		t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
	return target
}

func containsPathEntry(pathEnv, entry string) bool {
	for _, part := range filepath.SplitList(pathEnv) {
		if part == entry {
			return true
		}
	}
	return false
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StagingDir)
}
