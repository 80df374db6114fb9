package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesOverrides(t *testing.T) {
	path := writeConfig(t, `
[upload]
workers = 8
retry_attempts = 5

[dupe]
tolerance = 0.2

[[destinations]]
name = "alpha"
announce = "https://alpha.test/announce/abc"
source_tag = "ALP"
formats = ["flac", "320"]
`)

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved != path {
		t.Errorf("resolved = %s exists = %v", resolved, exists)
	}
	if cfg.Upload.Workers != 8 || cfg.Upload.RetryAttempts != 5 {
		t.Errorf("upload overrides not applied: %+v", cfg.Upload)
	}
	if cfg.Dupe.Tolerance != 0.2 {
		t.Errorf("dupe.tolerance = %v, want 0.2", cfg.Dupe.Tolerance)
	}
	// Untouched sections keep their defaults.
	if cfg.Spectral.FullWidth != defaultSpectralFullWidth {
		t.Errorf("spectral default lost: %d", cfg.Spectral.FullWidth)
	}
	if len(cfg.Destinations) != 1 {
		t.Fatalf("destinations = %d, want 1", len(cfg.Destinations))
	}
	// Formats normalize to upper case.
	if cfg.Destinations[0].Formats[0] != "FLAC" || cfg.Destinations[0].Formats[1] != "320" {
		t.Errorf("formats not normalized: %v", cfg.Destinations[0].Formats)
	}
}

func TestLoadExpandsPaths(t *testing.T) {
	path := writeConfig(t, `
[paths]
staging_dir = "~/coho-staging"
`)

	cfg, _, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}
	if cfg.Paths.StagingDir != filepath.Join(home, "coho-staging") {
		t.Errorf("staging dir = %s", cfg.Paths.StagingDir)
	}
	if !filepath.IsAbs(cfg.Paths.LogDir) {
		t.Errorf("log dir not absolute: %s", cfg.Paths.LogDir)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			"bad tolerance",
			"[dupe]\ntolerance = 1.5\n",
			"dupe.tolerance",
		},
		{
			"destination without announce",
			"[[destinations]]\nname = \"alpha\"\nformats = [\"FLAC\"]\n",
			"announce",
		},
		{
			"destination with unknown format",
			"[[destinations]]\nname = \"alpha\"\nannounce = \"https://a/b\"\nformats = [\"OGG\"]\n",
			"unknown format",
		},
		{
			"duplicate destination names",
			"[[destinations]]\nname = \"alpha\"\nannounce = \"https://a/b\"\nformats = [\"FLAC\"]\n" +
				"[[destinations]]\nname = \"Alpha\"\nannounce = \"https://a/c\"\nformats = [\"FLAC\"]\n",
			"duplicate name",
		},
		{
			"bad logging format",
			"[logging]\nformat = \"yaml\"\n",
			"logging.format",
		},
		{
			"bad flac compression level",
			"[transcode]\nflac_compression_level = 9\n",
			"transcode.flac_compression_level",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.content)
			_, _, _, err := Load(path)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestSampleConfigLoads(t *testing.T) {
	path := writeConfig(t, SampleConfig())
	cfg, _, _, err := Load(path)
	if err != nil {
		t.Fatalf("sample config does not load: %v", err)
	}
	if cfg.Upload.Workers < 1 {
		t.Errorf("sample workers = %d", cfg.Upload.Workers)
	}
}

func TestFindDestinationIsCaseInsensitive(t *testing.T) {
	cfg := Default()
	cfg.Destinations = []Destination{{Name: "Alpha"}}

	if _, ok := cfg.FindDestination("alpha"); !ok {
		t.Error("lookup should ignore case")
	}
	if _, ok := cfg.FindDestination("beta"); ok {
		t.Error("unknown destination should not resolve")
	}
}
