package requests

import (
	"sort"
	"strings"

	"coho/internal/config"
	"coho/internal/dedupe"
	"coho/internal/release"
	"coho/internal/services"
)

// Request is one open request on a destination.
type Request struct {
	ID             string
	Artist         string
	Title          string
	Year           int
	FormatsAllowed []string
	MediaAllowed   []string
}

// Fill pairs a request with the confidence that the candidate fills it.
type Fill struct {
	Request Request
	Score   float64
}

// Matcher scores candidates against open requests. Name similarity reuses
// the duplicate comparator with format and year weights dropped, since a
// request names a wanted release rather than an existing encode.
type Matcher struct {
	detector *dedupe.Detector
	floor    float64
}

// NewMatcher derives a Matcher from the dupe settings.
func NewMatcher(settings config.Dupe) *Matcher {
	nameOnly := settings
	nameOnly.FormatWeight = 0
	nameOnly.YearWeight = 0
	return &Matcher{detector: dedupe.NewDetector(nameOnly), floor: settings.RelevanceFloor}
}

// Match returns request fills ranked by confidence. An explicit request id
// short-circuits the scan: the named request is matched alone, and an
// unknown id is an error.
func (m *Matcher) Match(candidate *release.ReleaseCandidate, open []Request, explicitID string) ([]Fill, error) {
	if candidate == nil {
		return nil, services.Wrap(services.ErrValidation, "requests", "match", "candidate is nil", nil)
	}

	if explicitID != "" {
		for _, request := range open {
			if request.ID == explicitID {
				if !m.allows(request, candidate) {
					return nil, services.Wrap(services.ErrValidation, "requests", "match",
						"request "+explicitID+" does not allow this format or media", nil)
				}
				return []Fill{{Request: request, Score: 1}}, nil
			}
		}
		return nil, services.Wrap(services.ErrNotFound, "requests", "match", "request "+explicitID+" not found", nil)
	}

	var fills []Fill
	for _, request := range open {
		if !m.allows(request, candidate) {
			continue
		}
		entry := dedupe.Entry{Artist: request.Artist, Title: request.Title, Year: request.Year}
		matches := m.detector.Compare(candidate, []dedupe.Entry{entry})
		if len(matches) == 0 {
			continue
		}
		fills = append(fills, Fill{Request: request, Score: matches[0].Score})
	}
	sort.SliceStable(fills, func(i, j int) bool {
		return fills[i].Score > fills[j].Score
	})
	return fills, nil
}

// allows checks the request's format and media allowances against the
// candidate. Empty allowance lists accept anything.
func (m *Matcher) allows(request Request, candidate *release.ReleaseCandidate) bool {
	if len(request.FormatsAllowed) > 0 && !allowanceMatches(request.FormatsAllowed, candidate.Format) {
		return false
	}
	if len(request.MediaAllowed) > 0 && candidate.Source != "" && !allowanceMatches(request.MediaAllowed, candidate.Source) {
		return false
	}
	return true
}

// allowanceMatches is case-insensitive and treats a bare family name as
// covering its variants, so "FLAC" admits "24bit FLAC".
func allowanceMatches(allowed []string, value string) bool {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, entry := range allowed {
		allowedValue := strings.ToLower(strings.TrimSpace(entry))
		if allowedValue == "" {
			continue
		}
		if strings.Contains(normalized, allowedValue) {
			return true
		}
	}
	return false
}
