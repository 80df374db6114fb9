package integrity

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseRipLogExtractsFields(t *testing.T) {
	dir := t.TempDir()
	content := "Exact Audio Copy V1.6\n" +
		"     1  |  0:00.00 |  4:12.45 |        0    |    18944\n" +
		"     2  |  4:12.45 |  3:01.00 |    18945    |    32519\n" +
		"Track  1\n     Copy CRC 1A2B3C4D\n" +
		"Track  2\n     Copy CRC DEADBEEF\n" +
		"Log score: 98\n"
	path := filepath.Join(dir, "album.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	summary, err := ParseRipLog(path)
	if err != nil {
		t.Fatalf("ParseRipLog failed: %v", err)
	}
	if len(summary.CRCs) != 2 || summary.CRCs[0] != "1A2B3C4D" || summary.CRCs[1] != "DEADBEEF" {
		t.Fatalf("unexpected CRCs: %v", summary.CRCs)
	}
	if len(summary.Durations) != 2 {
		t.Fatalf("expected 2 durations, got %v", summary.Durations)
	}
	want := 4*time.Minute + 12*time.Second + 45*time.Second/75
	if summary.Durations[0] != want {
		t.Fatalf("duration[0] = %s, want %s", summary.Durations[0], want)
	}
	if !summary.ScorePresent || summary.Score != 98 {
		t.Fatalf("unexpected score: %#v", summary)
	}
}

func TestParseRipLogHandlesUTF16(t *testing.T) {
	dir := t.TempDir()
	text := "Copy CRC CAFEBABE\r\n"
	raw := []byte{0xFF, 0xFE}
	for _, r := range text {
		raw = append(raw, byte(r), byte(r>>8))
	}
	path := filepath.Join(dir, "utf16.log")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	summary, err := ParseRipLog(path)
	if err != nil {
		t.Fatalf("ParseRipLog failed: %v", err)
	}
	if len(summary.CRCs) != 1 || summary.CRCs[0] != "CAFEBABE" {
		t.Fatalf("unexpected CRCs: %v", summary.CRCs)
	}
}

func TestFindRipLogPicksDeterministically(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.log", "a.log", "cover.jpg"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if got := FindRipLog(dir); got != filepath.Join(dir, "a.log") {
		t.Fatalf("FindRipLog = %q", got)
	}
	if got := FindRipLog(t.TempDir()); got != "" {
		t.Fatalf("expected empty result for folder without logs, got %q", got)
	}
}
