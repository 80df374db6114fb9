package requests

import (
	"errors"
	"testing"

	"coho/internal/config"
	"coho/internal/release"
	"coho/internal/services"
)

func matcher() *Matcher {
	return NewMatcher(config.Default().Dupe)
}

func candidate() *release.ReleaseCandidate {
	return &release.ReleaseCandidate{
		Artists: []string{"Portishead"},
		Title:   "Dummy",
		Year:    1994,
		Format:  "24bit FLAC",
		Source:  "WEB",
	}
}

func TestMatchRanksOpenRequests(t *testing.T) {
	open := []Request{
		{ID: "r1", Artist: "Portishead", Title: "Dummy"},
		{ID: "r2", Artist: "Portishead", Title: "Third"},
		{ID: "r3", Artist: "Autechre", Title: "Amber"},
	}
	fills, err := matcher().Match(candidate(), open, "")
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if len(fills) == 0 || fills[0].Request.ID != "r1" {
		t.Fatalf("expected r1 ranked first, got %#v", fills)
	}
	for _, fill := range fills {
		if fill.Request.ID == "r3" {
			t.Fatal("unrelated request should not be offered")
		}
	}
}

func TestMatchHonorsFormatAllowance(t *testing.T) {
	open := []Request{
		{ID: "lossy-only", Artist: "Portishead", Title: "Dummy", FormatsAllowed: []string{"320", "V0"}},
		{ID: "lossless", Artist: "Portishead", Title: "Dummy", FormatsAllowed: []string{"FLAC"}},
	}
	fills, err := matcher().Match(candidate(), open, "")
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if len(fills) != 1 || fills[0].Request.ID != "lossless" {
		t.Fatalf("expected only the FLAC request, got %#v", fills)
	}
}

func TestMatchHonorsMediaAllowance(t *testing.T) {
	open := []Request{
		{ID: "cd-only", Artist: "Portishead", Title: "Dummy", MediaAllowed: []string{"CD"}},
	}
	fills, err := matcher().Match(candidate(), open, "")
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if len(fills) != 0 {
		t.Fatalf("WEB source must not fill a CD-only request, got %#v", fills)
	}
}

func TestExplicitRequestIDShortCircuits(t *testing.T) {
	open := []Request{
		{ID: "r1", Artist: "Someone", Title: "Else"},
		{ID: "r2", Artist: "Portishead", Title: "Dummy"},
	}
	fills, err := matcher().Match(candidate(), open, "r1")
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if len(fills) != 1 || fills[0].Request.ID != "r1" || fills[0].Score != 1 {
		t.Fatalf("expected the named request alone, got %#v", fills)
	}
}

func TestExplicitRequestIDNotFound(t *testing.T) {
	_, err := matcher().Match(candidate(), nil, "missing")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestExplicitRequestRejectsDisallowedFormat(t *testing.T) {
	open := []Request{
		{ID: "lossy", Artist: "Portishead", Title: "Dummy", FormatsAllowed: []string{"320"}},
	}
	_, err := matcher().Match(candidate(), open, "lossy")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
