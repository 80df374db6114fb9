package destination

import (
	"context"
	"errors"
	"testing"

	"coho/internal/services"
)

func TestRegistryLookup(t *testing.T) {
	registry := NewRegistry(NewStub("alpha"), NewStub("beta"))

	collaborator, err := registry.Lookup("alpha")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if collaborator.Name() != "alpha" {
		t.Fatalf("unexpected collaborator %q", collaborator.Name())
	}

	if _, err := registry.Lookup("gamma"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}

	names := registry.Names()
	if len(names) != 2 || names[0] != "alpha" || names[1] != "beta" {
		t.Fatalf("unexpected names: %v", names)
	}
}

func TestRegistryLaterDuplicateWins(t *testing.T) {
	first := NewStub("alpha")
	second := NewStub("alpha")
	second.RecentIndex = "Artist - Album [FLAC] {2001}"
	registry := NewRegistry(first, second)

	collaborator, err := registry.Lookup("alpha")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	index, err := collaborator.RecentUploads(context.Background())
	if err != nil {
		t.Fatalf("RecentUploads failed: %v", err)
	}
	if index == "" {
		t.Fatal("expected the shadowing collaborator to win")
	}
}

func TestStubRecordsUploads(t *testing.T) {
	stub := NewStub("alpha")
	if err := stub.Upload(context.Background(), Submission{ReleaseTitle: "Album", Format: "FLAC"}); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	uploads := stub.Uploads()
	if len(uploads) != 1 || uploads[0].Format != "FLAC" {
		t.Fatalf("unexpected uploads: %#v", uploads)
	}
}
