package release

import (
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dhowden/tag"
	flac "github.com/go-flac/go-flac"

	"coho/internal/services"
)

var audioExtensions = map[string]struct{}{
	".flac": {},
	".mp3":  {},
}

var leadingNumberRe = regexp.MustCompile(`^(\d+)`)

// Scan builds a ReleaseCandidate from a folder of audio tracks. Track order
// follows disc/track tags with a numeric-filename fallback. Metadata comes
// from embedded tags; callers overlay source tag and format afterwards.
func Scan(path string) (*ReleaseCandidate, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat release folder: %w", err)
	}
	if !info.IsDir() {
		return nil, services.Wrap(services.ErrValidation, "scan", "", fmt.Sprintf("%s is not a directory", path), nil)
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := audioExtensions[strings.ToLower(filepath.Ext(p))]; ok {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk release folder: %w", err)
	}
	if len(files) == 0 {
		return nil, services.Wrap(services.ErrValidation, "scan", "", "no audio files found", nil)
	}

	tracks := make([]TrackFile, 0, len(files))
	for _, file := range files {
		track, err := readTrack(file)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}
	sortTracks(tracks)

	candidate := &ReleaseCandidate{
		FolderPath: filepath.Clean(path),
		Tracks:     tracks,
	}
	applyAlbumMetadata(candidate)
	return candidate, nil
}

func readTrack(path string) (TrackFile, error) {
	track := TrackFile{Path: path, FileName: filepath.Base(path)}

	if strings.EqualFold(filepath.Ext(path), ".flac") {
		f, err := flac.ParseFile(path)
		if err != nil {
			return track, services.Wrap(services.ErrValidation, "scan", "parse flac", path, err)
		}
		streamInfo, err := f.GetStreamInfo()
		if err != nil {
			return track, services.Wrap(services.ErrValidation, "scan", "stream info", path, err)
		}
		track.SampleRate = streamInfo.SampleRate
		track.BitDepth = streamInfo.BitDepth
		track.Channels = streamInfo.ChannelCount
		track.ChecksumMD5 = hex.EncodeToString(streamInfo.AudioMD5)
		if streamInfo.SampleRate > 0 {
			seconds := float64(streamInfo.SampleCount) / float64(streamInfo.SampleRate)
			track.Duration = time.Duration(seconds * float64(time.Second))
		}
	}

	file, err := os.Open(path)
	if err != nil {
		return track, fmt.Errorf("open track: %w", err)
	}
	defer file.Close()

	meta, err := tag.ReadFrom(file)
	if err != nil {
		// Tagless files stay in the candidate; verdicts downstream decide
		// whether missing titles matter.
		return track, nil
	}
	track.Tags = trackTagsFromMetadata(meta)
	return track, nil
}

func trackTagsFromMetadata(meta tag.Metadata) TrackTags {
	tags := TrackTags{
		Title: strings.TrimSpace(meta.Title()),
		Album: strings.TrimSpace(meta.Album()),
		Year:  meta.Year(),
		Genre: strings.TrimSpace(meta.Genre()),
	}
	if artist := strings.TrimSpace(meta.Artist()); artist != "" {
		tags.Artists = splitArtists(artist)
	}
	tags.TrackNumber, tags.TrackTotal = meta.Track()
	tags.DiscNumber, tags.DiscTotal = meta.Disc()
	return tags
}

func splitArtists(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == ';' || r == '/' })
	artists := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			artists = append(artists, trimmed)
		}
	}
	return artists
}

func sortTracks(tracks []TrackFile) {
	sort.SliceStable(tracks, func(i, j int) bool {
		a, b := tracks[i], tracks[j]
		if a.Tags.DiscNumber != b.Tags.DiscNumber {
			return a.Tags.DiscNumber < b.Tags.DiscNumber
		}
		if a.Tags.TrackNumber != 0 && b.Tags.TrackNumber != 0 && a.Tags.TrackNumber != b.Tags.TrackNumber {
			return a.Tags.TrackNumber < b.Tags.TrackNumber
		}
		an, aNumeric := leadingNumber(a.FileName)
		bn, bNumeric := leadingNumber(b.FileName)
		if aNumeric && bNumeric && an != bn {
			return an < bn
		}
		if aNumeric != bNumeric {
			return aNumeric
		}
		return strings.ToLower(a.FileName) < strings.ToLower(b.FileName)
	})
}

func leadingNumber(name string) (int, bool) {
	match := leadingNumberRe.FindString(name)
	if match == "" {
		return 0, false
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0, false
	}
	return n, true
}

func applyAlbumMetadata(candidate *ReleaseCandidate) {
	artistSet := make(map[string]struct{})
	for _, track := range candidate.Tracks {
		if candidate.Title == "" && track.Tags.Album != "" {
			candidate.Title = track.Tags.Album
		}
		if candidate.Year == 0 && track.Tags.Year > 0 {
			candidate.Year = track.Tags.Year
		}
		for _, artist := range track.Tags.Artists {
			if _, seen := artistSet[artist]; !seen {
				artistSet[artist] = struct{}{}
				candidate.Artists = append(candidate.Artists, artist)
			}
		}
	}
	if candidate.Title == "" {
		candidate.Title = filepath.Base(candidate.FolderPath)
	}
	candidate.Format = inferFormat(candidate.Tracks)
}

func inferFormat(tracks []TrackFile) string {
	hasFlac := false
	for _, track := range tracks {
		if strings.EqualFold(filepath.Ext(track.FileName), ".flac") {
			hasFlac = true
			break
		}
	}
	if !hasFlac {
		return "MP3"
	}
	for _, track := range tracks {
		if track.BitDepth > 16 {
			return "24bit FLAC"
		}
	}
	return "FLAC"
}
