package dedupe

import (
	"sort"
	"strings"

	"coho/internal/config"
	"coho/internal/queue"
	"coho/internal/release"
)

// Class buckets a match by how actionable it is.
type Class string

const (
	// ClassLikely blocks auto-approval; the release almost certainly
	// already exists.
	ClassLikely Class = "likely"
	// ClassPossible is surfaced for review but does not block.
	ClassPossible Class = "possible"
)

// Entry is one known prior upload in comparable form.
type Entry struct {
	Artist      string
	Title       string
	Format      string
	Year        int
	Destination string
	Origin      string
}

// Breakdown exposes the per-field similarity behind a score.
type Breakdown struct {
	Artist float64
	Title  float64
	Format float64
	Year   float64
}

// Match pairs an entry with its weighted score. Matches are read-only
// results; nothing downstream mutates them.
type Match struct {
	Entry     Entry
	Score     float64
	Class     Class
	Breakdown Breakdown
}

// Detector scores candidates against prior uploads using configurable
// field weights.
type Detector struct {
	settings config.Dupe
}

// NewDetector builds a Detector from the dupe settings.
func NewDetector(settings config.Dupe) *Detector {
	return &Detector{settings: settings}
}

// likelyThreshold derives the likely cutoff from the tolerance knob. A
// tolerance of zero demands a perfect score.
func (d *Detector) likelyThreshold() float64 {
	return 1 - d.settings.Tolerance/4
}

// Compare scores the candidate against every entry and returns matches at
// or above the relevance floor, ranked best first.
func (d *Detector) Compare(candidate *release.ReleaseCandidate, entries []Entry) []Match {
	if candidate == nil {
		return nil
	}
	candArtist, candTitle, candFormat, candYear := NormalizeTuple(
		strings.Join(candidate.Artists, " "), candidate.Title, candidate.Format, candidate.Year)

	var matches []Match
	for _, entry := range entries {
		match := d.score(candArtist, candTitle, candFormat, candYear, entry)
		if match == nil {
			continue
		}
		matches = append(matches, *match)
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}

// HasLikely reports whether any match is a likely duplicate.
func HasLikely(matches []Match) bool {
	for _, match := range matches {
		if match.Class == ClassLikely {
			return true
		}
	}
	return false
}

func (d *Detector) score(candArtist, candTitle, candFormat string, candYear int, entry Entry) *Match {
	entryArtist, entryTitle, entryFormat, _ := NormalizeTuple(entry.Artist, entry.Title, entry.Format, entry.Year)

	breakdown := Breakdown{
		Artist: tokenSetSimilarity(candArtist, entryArtist),
		Title:  tokenSetSimilarity(candTitle, entryTitle),
		Format: formatSimilarity(candFormat, entryFormat),
		Year:   yearSimilarity(candYear, entry.Year),
	}

	s := d.settings
	totalWeight := s.ArtistWeight + s.TitleWeight + s.FormatWeight + s.YearWeight
	if totalWeight <= 0 {
		return nil
	}
	score := (breakdown.Artist*s.ArtistWeight +
		breakdown.Title*s.TitleWeight +
		breakdown.Format*s.FormatWeight +
		breakdown.Year*s.YearWeight) / totalWeight

	fieldsEqual := candArtist == entryArtist && candTitle == entryTitle && candFormat == entryFormat
	yearEqual := candYear == entry.Year

	match := &Match{Entry: entry, Breakdown: breakdown}
	switch {
	case fieldsEqual && yearEqual:
		// The identical tuple is a duplicate by definition.
		match.Score = 1
		match.Class = ClassLikely
	case fieldsEqual && !yearEqual:
		// Same release, different edition year: surfaced, never blocking.
		match.Score = score
		match.Class = ClassPossible
	case score >= d.likelyThreshold() && yearEqual:
		match.Score = score
		match.Class = ClassLikely
	case score >= d.settings.RelevanceFloor:
		match.Score = score
		match.Class = ClassPossible
	default:
		return nil
	}
	return match
}

func formatSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	// Different encodes of the same lossless family still resemble each
	// other more than lossless vs lossy.
	if strings.Contains(a, "flac") && strings.Contains(b, "flac") {
		return 0.5
	}
	return 0
}

func yearSimilarity(a, b int) float64 {
	switch {
	case a == b:
		return 1
	case a == 0 || b == 0:
		return 0.5
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	score := 1 - float64(diff)*0.25
	if score < 0 {
		return 0
	}
	return score
}

// FromCatalog converts stored catalog entries into comparable form.
func FromCatalog(entries []queue.CatalogEntry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		year := entry.Year
		if entry.EditionYear != 0 {
			year = entry.EditionYear
		}
		out = append(out, Entry{
			Artist:      entry.Artist,
			Title:       entry.Title,
			Format:      entry.Format,
			Year:        year,
			Destination: entry.Destination,
			Origin:      "catalog",
		})
	}
	return out
}
