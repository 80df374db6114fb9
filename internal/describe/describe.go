package describe

import (
	"fmt"
	"strings"
	"time"

	"coho/internal/release"
	"coho/internal/spectral"
)

// Input gathers everything the description references. Only Candidate is
// required.
type Input struct {
	Candidate     *release.ReleaseCandidate
	Spectrals     *spectral.Report
	SpectralURLs  map[string]string
	MoreInfoLinks []string
	LossyNotes    []string
}

// Build renders the candidate description. Output is deterministic: track
// order follows the candidate, link order follows the input slices.
func Build(in Input) string {
	candidate := in.Candidate
	if candidate == nil {
		return ""
	}

	var b strings.Builder

	b.WriteString("[size=4][b]")
	b.WriteString(candidate.DisplayName())
	b.WriteString("[/b][/size]\n\n")

	writeReleaseLine(&b, candidate)
	writeEncodeSpecifics(&b, candidate)

	b.WriteString("\n[b]Tracklist[/b]\n")
	for _, track := range candidate.Tracks {
		b.WriteString(trackLine(candidate, track))
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "[b]Total length:[/b] %s\n", formatDuration(candidate.TotalDuration()))

	if candidate.SourceURL != "" {
		fmt.Fprintf(&b, "\n[b]Source:[/b] [url=%s]%s[/url]\n", candidate.SourceURL, candidate.SourceURL)
	}
	if len(in.MoreInfoLinks) > 0 {
		b.WriteString("\n[b]More info:[/b]")
		for _, link := range in.MoreInfoLinks {
			fmt.Fprintf(&b, " [url=%s]%s[/url]", link, link)
		}
		b.WriteByte('\n')
	}

	if len(in.LossyNotes) > 0 {
		b.WriteString("\n[b]Notes[/b]\n")
		for _, note := range in.LossyNotes {
			fmt.Fprintf(&b, "%s\n", note)
		}
	}

	writeSpectralSection(&b, in)
	return b.String()
}

func writeReleaseLine(b *strings.Builder, candidate *release.ReleaseCandidate) {
	var parts []string
	if candidate.Label != "" {
		parts = append(parts, candidate.Label)
	}
	if candidate.CatalogNumber != "" {
		parts = append(parts, candidate.CatalogNumber)
	}
	if candidate.EditionTitle != "" {
		edition := candidate.EditionTitle
		if candidate.EditionYear > 0 && candidate.EditionYear != candidate.Year {
			edition = fmt.Sprintf("%s (%d)", edition, candidate.EditionYear)
		}
		parts = append(parts, edition)
	}
	if len(parts) > 0 {
		fmt.Fprintf(b, "[b]Release:[/b] %s\n", strings.Join(parts, " / "))
	}
}

func writeEncodeSpecifics(b *strings.Builder, candidate *release.ReleaseCandidate) {
	var specifics []string
	if depth := candidate.MaxBitDepth(); depth > 0 {
		seen := map[string]bool{}
		for _, track := range candidate.Tracks {
			spec := fmt.Sprintf("%dbit / %skHz", track.BitDepth, formatKHz(track.SampleRate))
			if !seen[spec] {
				seen[spec] = true
				specifics = append(specifics, spec)
			}
		}
	} else {
		specifics = append(specifics, candidate.Format)
	}
	if candidate.Source != "" {
		specifics = append(specifics, candidate.Source)
	}
	fmt.Fprintf(b, "[b]Encode specifics:[/b] %s\n", strings.Join(specifics, ", "))
}

// trackLine renders "1. Artist - Title (4:12)", zero-padding disc-track
// numbers for multi-disc releases as "1.01".
func trackLine(candidate *release.ReleaseCandidate, track release.TrackFile) string {
	number := fmt.Sprint(track.Tags.TrackNumber)
	if candidate.MultiDisc() {
		disc := track.Tags.DiscNumber
		if disc == 0 {
			disc = 1
		}
		number = fmt.Sprintf("%d.%02d", disc, track.Tags.TrackNumber)
	}

	artists := track.Tags.Artists
	if len(artists) == 0 {
		artists = candidate.Artists
	}
	title := track.Tags.Title
	if title == "" {
		title = track.FileName
	}
	return fmt.Sprintf("[b]%s.[/b] %s - %s [i](%s)[/i]",
		number, strings.Join(artists, ", "), title, formatDuration(track.Duration))
}

func writeSpectralSection(b *strings.Builder, in Input) {
	if in.Spectrals == nil || len(in.Spectrals.Tracks) == 0 {
		return
	}
	b.WriteString("\n[hide=Spectrals]\n")
	for _, track := range in.Spectrals.Tracks {
		if track.Status != spectral.TrackOK {
			continue
		}
		fmt.Fprintf(b, "[b]%s[/b]\n", track.Track)
		for _, path := range []string{track.FullPath, track.ZoomPath} {
			ref := path
			if in.SpectralURLs != nil {
				if url, ok := in.SpectralURLs[path]; ok {
					ref = url
				}
			}
			fmt.Fprintf(b, "[img]%s[/img]\n", ref)
		}
	}
	b.WriteString("[/hide]\n")
}

// formatDuration renders m:ss, rolling hours into minutes.
func formatDuration(d time.Duration) string {
	total := int(d.Round(time.Second).Seconds())
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func formatKHz(sampleRate int) string {
	khz := float64(sampleRate) / 1000
	if khz == float64(int(khz)) {
		return fmt.Sprint(int(khz))
	}
	return strings.TrimRight(fmt.Sprintf("%.1f", khz), "0")
}
