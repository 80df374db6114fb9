package queue_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"coho/internal/queue"
	"coho/internal/services"
	"coho/internal/testsupport"
)

func TestOpenCreatesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job, err := store.NewJob(ctx, "fp-1", "Artist - Album", "/music/album", "alpha", "FLAC")
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}
	if job.ID == 0 {
		t.Fatal("expected job ID to be assigned")
	}
	if job.Status != queue.StatusPending {
		t.Fatalf("expected pending status, got %s", job.Status)
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched == nil || fetched.ReleaseTitle != "Artist - Album" {
		t.Fatalf("unexpected fetched job: %#v", fetched)
	}

	jobs, err := store.JobsByFingerprint(ctx, "fp-1")
	if err != nil {
		t.Fatalf("JobsByFingerprint failed: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != job.ID {
		t.Fatalf("expected inserted job, got %#v", jobs)
	}
}

func TestNewJobRequiresFields(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if _, err := store.NewJob(ctx, "", "Title", "/music/album", "alpha", "FLAC"); err == nil {
		t.Fatal("expected error when fingerprint missing")
	}
	if _, err := store.NewJob(ctx, "fp", "Title", "/music/album", "alpha", ""); err == nil {
		t.Fatal("expected error when format missing")
	}
}

func TestNewJobRejectsDuplicateTuple(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if _, err := store.NewJob(ctx, "fp-1", "Artist - Album", "/music/album", "alpha", "FLAC"); err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}
	_, err := store.NewJob(ctx, "fp-1", "Artist - Album", "/music/album", "alpha", "FLAC")
	if !errors.Is(err, services.ErrDuplicate) {
		t.Fatalf("expected duplicate-job error, got %v", err)
	}
	// A different format for the same release and destination is fine.
	if _, err := store.NewJob(ctx, "fp-1", "Artist - Album", "/music/album", "alpha", "320"); err != nil {
		t.Fatalf("NewJob with different format failed: %v", err)
	}
}

func TestJobFanOutIsPerDestinationFormat(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	pairs := []struct{ destination, format string }{
		{"alpha", "FLAC"},
		{"beta", "320"},
	}
	for _, pair := range pairs {
		if _, err := store.NewJob(ctx, "fp-fanout", "Title", "/music/album", pair.destination, pair.format); err != nil {
			t.Fatalf("NewJob(%s, %s) failed: %v", pair.destination, pair.format, err)
		}
	}

	// Inserting the same pair twice violates the uniqueness constraint.
	if _, err := store.NewJob(ctx, "fp-fanout", "Title", "/music/album", "alpha", "FLAC"); err == nil {
		t.Fatal("expected duplicate (destination, format) insert to fail")
	}

	jobs, err := store.JobsByFingerprint(ctx, "fp-fanout")
	if err != nil {
		t.Fatalf("JobsByFingerprint failed: %v", err)
	}
	if len(jobs) != len(pairs) {
		t.Fatalf("expected %d jobs, got %d", len(pairs), len(jobs))
	}
}

func TestUpdatePersistsFields(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.NewJob(t, store, "fp-update", "alpha", "FLAC")

	job.Status = queue.StatusTranscoded
	job.Stage = "transcode"
	job.PayloadPath = "/staging/out"
	job.Attempts = 2
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Status != queue.StatusTranscoded || fetched.PayloadPath != "/staging/out" || fetched.Attempts != 2 {
		t.Fatalf("unexpected persisted job: %#v", fetched)
	}
}

func TestNextForStatusesReturnsOldest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	first := testsupport.NewJob(t, store, "fp-next-1", "alpha", "FLAC")
	second := testsupport.NewJob(t, store, "fp-next-2", "alpha", "320")

	second.Status = queue.StatusValidated
	if err := store.Update(ctx, second); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	next, err := store.NextForStatuses(ctx, queue.StatusPending)
	if err != nil {
		t.Fatalf("NextForStatuses failed: %v", err)
	}
	if next == nil || next.ID != first.ID {
		t.Fatalf("expected oldest pending job %d, got %#v", first.ID, next)
	}

	none, err := store.NextForStatuses(ctx, queue.StatusHeld)
	if err != nil {
		t.Fatalf("NextForStatuses failed: %v", err)
	}
	if none != nil {
		t.Fatalf("expected no held job, got %#v", none)
	}
}

func TestResetStuckProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	cases := []struct {
		name          string
		initialStatus queue.Status
		expected      queue.Status
	}{
		{"validating", queue.StatusValidating, queue.StatusPending},
		{"analyzing", queue.StatusAnalyzing, queue.StatusValidated},
		{"dedup_checking", queue.StatusDedupChecking, queue.StatusAnalyzed},
		{"transcoding", queue.StatusTranscoding, queue.StatusDedupChecked},
		{"packaging", queue.StatusPackaging, queue.StatusTranscoded},
		{"uploading", queue.StatusUploading, queue.StatusPackaged},
		{"injecting", queue.StatusInjecting, queue.StatusUploaded},
	}
	var ids []int64
	for i, tc := range cases {
		job, err := store.NewJob(ctx, fmt.Sprintf("fp-reset-%d", i), tc.name, "/music/album", "alpha", "FLAC")
		if err != nil {
			t.Fatalf("NewJob failed: %v", err)
		}
		job.Status = tc.initialStatus
		job.Stage = tc.name
		if err := store.Update(ctx, job); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		ids = append(ids, job.ID)
	}

	count, err := store.ResetStuckProcessing(ctx)
	if err != nil {
		t.Fatalf("ResetStuckProcessing failed: %v", err)
	}
	if int(count) != len(cases) {
		t.Fatalf("expected %d jobs reset, got %d", len(cases), count)
	}

	for i, tc := range cases {
		job, err := store.GetByID(ctx, ids[i])
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if job.Status != tc.expected {
			t.Fatalf("%s: expected status %s, got %s", tc.name, tc.expected, job.Status)
		}
		if job.Stage != "" {
			t.Fatalf("%s: expected cleared stage, got %q", tc.name, job.Stage)
		}
	}
}

func TestSummarizeBuckets(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	statuses := []queue.Status{
		queue.StatusPending,
		queue.StatusTranscoding,
		queue.StatusHeld,
		queue.StatusDone,
		queue.StatusFailed,
	}
	for i, status := range statuses {
		job, err := store.NewJob(ctx, fmt.Sprintf("fp-sum-%d", i), "Title", "/music/album", "alpha", "FLAC")
		if err != nil {
			t.Fatalf("NewJob failed: %v", err)
		}
		job.Status = status
		if err := store.Update(ctx, job); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
	}

	summary, err := store.Summarize(ctx)
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if summary.Total != 5 || summary.Pending != 1 || summary.Processing != 1 ||
		summary.Held != 1 || summary.Done != 1 || summary.Failed != 1 {
		t.Fatalf("unexpected summary: %#v", summary)
	}
}

func TestCatalogAppendAndQuery(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	entries := []queue.CatalogEntry{
		{Destination: "alpha", Artist: "Artist", Title: "Album", Format: "FLAC", Year: 2001},
		{Destination: "alpha", Artist: "Artist", Title: "Album", Format: "320", Year: 2001},
		{Destination: "beta", Artist: "Other", Title: "Record", Format: "FLAC", Year: 1999},
	}
	for _, entry := range entries {
		if _, err := store.AppendCatalogEntry(ctx, entry); err != nil {
			t.Fatalf("AppendCatalogEntry failed: %v", err)
		}
	}

	alpha, err := store.CatalogByDestination(ctx, "alpha")
	if err != nil {
		t.Fatalf("CatalogByDestination failed: %v", err)
	}
	if len(alpha) != 2 {
		t.Fatalf("expected 2 alpha entries, got %d", len(alpha))
	}
	for _, entry := range alpha {
		if entry.UploadedAt.IsZero() {
			t.Fatal("expected uploaded_at to be populated on append")
		}
	}

	count, err := store.CatalogCount(ctx)
	if err != nil {
		t.Fatalf("CatalogCount failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 catalog entries, got %d", count)
	}
}

func TestClearHelpers(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	done := testsupport.NewJob(t, store, "fp-clear-done", "alpha", "FLAC")
	done.Status = queue.StatusDone
	if err := store.Update(ctx, done); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	failed := testsupport.NewJob(t, store, "fp-clear-failed", "alpha", "320")
	failed.SetFailed("boom")
	if err := store.Update(ctx, failed); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	testsupport.NewJob(t, store, "fp-clear-pending", "alpha", "V0")

	if n, err := store.ClearDone(ctx); err != nil || n != 1 {
		t.Fatalf("ClearDone = (%d, %v), want (1, nil)", n, err)
	}
	if n, err := store.ClearFailed(ctx); err != nil || n != 1 {
		t.Fatalf("ClearFailed = (%d, %v), want (1, nil)", n, err)
	}
	remaining, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(remaining) != 1 || remaining[0].Status != queue.StatusPending {
		t.Fatalf("expected one pending job left, got %#v", remaining)
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := queue.ParseStatus(" Dedup_Checked "); !ok || status != queue.StatusDedupChecked {
		t.Fatalf("ParseStatus = (%s, %v)", status, ok)
	}
	if _, ok := queue.ParseStatus("bogus"); ok {
		t.Fatal("expected unknown status to be rejected")
	}
}
