package transcode

import (
	"fmt"
	"strings"

	id3v2 "github.com/bogem/id3v2/v2"

	"coho/internal/release"
	"coho/internal/services"
)

// applyTags writes the candidate's normalized tag set onto a freshly
// encoded MP3. Tags always come from the candidate, never from whatever
// the source file carried.
func applyTags(path string, candidate *release.ReleaseCandidate, track release.TrackFile) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: false})
	if err != nil {
		return services.Wrap(services.ErrValidation, "transcode", "tag", "open "+path, err)
	}
	defer tag.Close()

	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	tags := track.Tags
	if title := strings.TrimSpace(tags.Title); title != "" {
		tag.SetTitle(title)
	}
	artists := tags.Artists
	if len(artists) == 0 {
		artists = candidate.Artists
	}
	if len(artists) > 0 {
		tag.SetArtist(strings.Join(artists, "; "))
	}
	album := candidate.Title
	if album != "" {
		tag.SetAlbum(album)
	}
	year := tags.Year
	if year == 0 {
		year = candidate.Year
	}
	if year > 0 {
		tag.SetYear(fmt.Sprint(year))
	}
	if genre := strings.TrimSpace(tags.Genre); genre != "" {
		tag.SetGenre(genre)
	}
	if tags.TrackNumber > 0 {
		value := fmt.Sprint(tags.TrackNumber)
		if tags.TrackTotal > 0 {
			value = fmt.Sprintf("%d/%d", tags.TrackNumber, tags.TrackTotal)
		}
		tag.AddTextFrame(tag.CommonID("Track number/Position in set"), tag.DefaultEncoding(), value)
	}
	if tags.DiscNumber > 0 {
		value := fmt.Sprint(tags.DiscNumber)
		if tags.DiscTotal > 0 {
			value = fmt.Sprintf("%d/%d", tags.DiscNumber, tags.DiscTotal)
		}
		tag.AddTextFrame(tag.CommonID("Part of a set"), tag.DefaultEncoding(), value)
	}
	if label := strings.TrimSpace(candidate.Label); label != "" {
		tag.AddTextFrame(tag.CommonID("Publisher"), tag.DefaultEncoding(), label)
	}

	if err := tag.Save(); err != nil {
		return services.Wrap(services.ErrValidation, "transcode", "tag", "save "+path, err)
	}
	return nil
}
