package release

import (
	"testing"
	"time"
)

func track(disc, num int, name string) TrackFile {
	return TrackFile{
		FileName: name,
		Tags:     TrackTags{DiscNumber: disc, TrackNumber: num},
	}
}

func TestSortTracksByDiscThenNumber(t *testing.T) {
	tracks := []TrackFile{
		track(2, 1, "01 - Opener.flac"),
		track(1, 2, "02 - Second.flac"),
		track(1, 1, "01 - First.flac"),
	}
	sortTracks(tracks)

	want := []string{"01 - First.flac", "02 - Second.flac", "01 - Opener.flac"}
	for i, name := range want {
		if tracks[i].FileName != name {
			t.Errorf("position %d = %s, want %s", i, tracks[i].FileName, name)
		}
	}
}

func TestSortTracksNumericFilenameFallback(t *testing.T) {
	tracks := []TrackFile{
		{FileName: "10 - Ten.flac"},
		{FileName: "2 - Two.flac"},
		{FileName: "1 - One.flac"},
	}
	sortTracks(tracks)

	if tracks[0].FileName != "1 - One.flac" || tracks[2].FileName != "10 - Ten.flac" {
		t.Errorf("numeric sort failed: %v", []string{tracks[0].FileName, tracks[1].FileName, tracks[2].FileName})
	}
}

func TestInferFormat(t *testing.T) {
	cases := []struct {
		name   string
		tracks []TrackFile
		want   string
	}{
		{"lossy only", []TrackFile{{FileName: "a.mp3"}}, "MP3"},
		{"cd flac", []TrackFile{{FileName: "a.flac", BitDepth: 16}}, "FLAC"},
		{"hires flac", []TrackFile{{FileName: "a.flac", BitDepth: 24}}, "24bit FLAC"},
		{"mixed depth", []TrackFile{{FileName: "a.flac", BitDepth: 16}, {FileName: "b.flac", BitDepth: 24}}, "24bit FLAC"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := inferFormat(tc.tracks); got != tc.want {
				t.Errorf("inferFormat = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestSplitArtists(t *testing.T) {
	got := splitArtists("Alpha; Beta / Gamma")
	want := []string{"Alpha", "Beta", "Gamma"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("artist %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestApplyAlbumMetadataFallsBackToFolderName(t *testing.T) {
	candidate := &ReleaseCandidate{
		FolderPath: "/music/Unknown Album",
		Tracks:     []TrackFile{{FileName: "01.flac", BitDepth: 16}},
	}
	applyAlbumMetadata(candidate)

	if candidate.Title != "Unknown Album" {
		t.Errorf("title = %q, want folder name fallback", candidate.Title)
	}
	if candidate.Format != "FLAC" {
		t.Errorf("format = %q, want FLAC", candidate.Format)
	}
}

func TestDisplayName(t *testing.T) {
	candidate := &ReleaseCandidate{Artists: []string{"Lumen Vale"}, Title: "Glass Harbor", Year: 2021}
	if got := candidate.DisplayName(); got != "Lumen Vale - Glass Harbor (2021)" {
		t.Errorf("DisplayName = %q", got)
	}

	bare := &ReleaseCandidate{Title: "Glass Harbor"}
	if got := bare.DisplayName(); got != "Unknown Artist - Glass Harbor" {
		t.Errorf("DisplayName without artist = %q", got)
	}
}

func TestFingerprintStableAndSensitive(t *testing.T) {
	base := func() *ReleaseCandidate {
		return &ReleaseCandidate{
			Artists: []string{"Lumen Vale"},
			Title:   "Glass Harbor",
			Year:    2021,
			Format:  "FLAC",
			Tracks: []TrackFile{
				{FileName: "01.flac", ChecksumMD5: "aa11"},
				{FileName: "02.flac", ChecksumMD5: "bb22"},
			},
		}
	}

	first := base().Fingerprint()
	if len(first) != 16 {
		t.Fatalf("fingerprint length = %d, want 16", len(first))
	}
	if second := base().Fingerprint(); second != first {
		t.Errorf("fingerprint is not deterministic: %s vs %s", first, second)
	}

	// Artist order must not matter.
	reordered := base()
	reordered.Artists = []string{"Lumen Vale"}
	multi := base()
	multi.Artists = []string{"B", "A"}
	multiSwapped := base()
	multiSwapped.Artists = []string{"A", "B"}
	if multi.Fingerprint() != multiSwapped.Fingerprint() {
		t.Error("artist order changed the fingerprint")
	}

	changed := base()
	changed.Tracks[0].ChecksumMD5 = "cc33"
	if changed.Fingerprint() == first {
		t.Error("audio change did not change the fingerprint")
	}
}

func TestCandidateShapeHelpers(t *testing.T) {
	candidate := &ReleaseCandidate{
		Tracks: []TrackFile{
			{BitDepth: 16, SampleRate: 44100, Duration: 2 * time.Minute, Tags: TrackTags{DiscNumber: 1, DiscTotal: 2}},
			{BitDepth: 24, SampleRate: 96000, Duration: 3 * time.Minute, Tags: TrackTags{DiscNumber: 2, DiscTotal: 2}},
		},
	}

	if !candidate.Hybrid() {
		t.Error("mixed bit depths should report hybrid")
	}
	if !candidate.MultiDisc() {
		t.Error("two discs should report multi-disc")
	}
	if candidate.MaxBitDepth() != 24 {
		t.Errorf("MaxBitDepth = %d, want 24", candidate.MaxBitDepth())
	}
	if candidate.TotalDuration() != 5*time.Minute {
		t.Errorf("TotalDuration = %s, want 5m", candidate.TotalDuration())
	}
	if (TrackFile{BitDepth: 0}).Lossless() {
		t.Error("zero bit depth should not read as lossless")
	}
}
