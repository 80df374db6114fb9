package release

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// TrackTags is the normalized tag set embedded in a track file.
type TrackTags struct {
	Artists     []string
	Title       string
	Album       string
	TrackNumber int
	TrackTotal  int
	DiscNumber  int
	DiscTotal   int
	Year        int
	Genre       string
	Label       string
}

// TrackFile describes one audio file of a candidate. A TrackFile is owned
// exclusively by its ReleaseCandidate.
type TrackFile struct {
	Path       string
	FileName   string
	Duration   time.Duration
	SampleRate int
	BitDepth   int
	Channels   int
	// ChecksumMD5 is the unencoded-audio MD5 from the FLAC stream info,
	// empty for lossy sources.
	ChecksumMD5 string
	Tags        TrackTags
}

// Lossless reports whether the track carries PCM audio.
func (t TrackFile) Lossless() bool {
	return t.BitDepth > 0
}

// ReleaseCandidate is the immutable unit the pipeline operates on. A new
// candidate is a new identity; validation never mutates one in place.
type ReleaseCandidate struct {
	Artists       []string
	Title         string
	Year          int
	EditionTitle  string
	EditionYear   int
	Source        string
	Format        string
	CatalogNumber string
	UPC           string
	Label         string
	FolderPath    string
	Tracks        []TrackFile
	SourceURL     string
}

// TrackCount returns the number of audio tracks in the candidate.
func (c *ReleaseCandidate) TrackCount() int {
	return len(c.Tracks)
}

// TotalDuration sums all track durations.
func (c *ReleaseCandidate) TotalDuration() time.Duration {
	var total time.Duration
	for _, track := range c.Tracks {
		total += track.Duration
	}
	return total
}

// Hybrid reports whether tracks disagree on bit depth or sample rate, which
// changes how encode specifics are described.
func (c *ReleaseCandidate) Hybrid() bool {
	if len(c.Tracks) < 2 {
		return false
	}
	first := c.Tracks[0]
	for _, track := range c.Tracks[1:] {
		if track.BitDepth != first.BitDepth || track.SampleRate != first.SampleRate {
			return true
		}
	}
	return false
}

// MultiDisc reports whether the candidate spans more than one disc.
func (c *ReleaseCandidate) MultiDisc() bool {
	for _, track := range c.Tracks {
		if track.Tags.DiscNumber > 1 || track.Tags.DiscTotal > 1 {
			return true
		}
	}
	return false
}

// MaxBitDepth returns the highest bit depth across tracks, 0 for lossy.
func (c *ReleaseCandidate) MaxBitDepth() int {
	depth := 0
	for _, track := range c.Tracks {
		if track.BitDepth > depth {
			depth = track.BitDepth
		}
	}
	return depth
}

// DisplayName renders "Artist - Title (Year)" for logs and summaries.
func (c *ReleaseCandidate) DisplayName() string {
	artist := "Unknown Artist"
	if len(c.Artists) > 0 {
		artist = strings.Join(c.Artists, ", ")
	}
	if c.Year > 0 {
		return fmt.Sprintf("%s - %s (%d)", artist, c.Title, c.Year)
	}
	return fmt.Sprintf("%s - %s", artist, c.Title)
}

// Fingerprint derives a stable identity for the candidate from its metadata
// and track checksums. Used to key the working-directory lock and to detect
// concurrent runs on the same release.
func (c *ReleaseCandidate) Fingerprint() string {
	h := sha256.New()
	artists := append([]string{}, c.Artists...)
	sort.Strings(artists)
	fmt.Fprintf(h, "%s|%s|%d|%s|%s", strings.Join(artists, ";"), c.Title, c.Year, c.Format, c.EditionTitle)
	for _, track := range c.Tracks {
		if track.ChecksumMD5 != "" {
			fmt.Fprintf(h, "|%s", track.ChecksumMD5)
		} else {
			fmt.Fprintf(h, "|%s|%d", track.FileName, track.Duration/time.Millisecond)
		}
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
