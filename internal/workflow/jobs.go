package workflow

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"coho/internal/dedupe"
	"coho/internal/describe"
	"coho/internal/destination"
	"coho/internal/logging"
	"coho/internal/queue"
	"coho/internal/release"
	"coho/internal/services"
)

// runBranches executes every non-terminal job concurrently from the
// transcoding stage onward.
func (o *Orchestrator) runBranches(ctx context.Context, candidate *release.ReleaseCandidate, outcome *Outcome, opts RunOptions) {
	group, groupCtx := errgroup.WithContext(ctx)
	workers := o.cfg.Upload.Workers
	if workers < 1 {
		workers = 1
	}
	group.SetLimit(workers)

	description := o.buildDescription(candidate, outcome)
	cache := newPayloadCache()
	for _, job := range outcome.Jobs {
		if job.Status != queue.StatusDedupChecked {
			continue
		}
		group.Go(func() error {
			o.runBranch(groupCtx, candidate, job, description, cache, opts)
			return nil
		})
	}
	_ = group.Wait()
}

// payloadCache shares one transcode per output format between jobs that
// target different destinations with the same format.
type payloadCache struct {
	mu      sync.Mutex
	entries map[string]*payloadEntry
}

type payloadEntry struct {
	once sync.Once
	dir  string
	err  error
}

func newPayloadCache() *payloadCache {
	return &payloadCache{entries: make(map[string]*payloadEntry)}
}

func (c *payloadCache) get(format string, build func() (string, error)) (string, error) {
	c.mu.Lock()
	entry, ok := c.entries[format]
	if !ok {
		entry = &payloadEntry{}
		c.entries[format] = entry
	}
	c.mu.Unlock()
	entry.once.Do(func() {
		entry.dir, entry.err = build()
	})
	return entry.dir, entry.err
}

// runBranch is one job's state machine. Failures terminate only this
// branch; siblings keep going.
func (o *Orchestrator) runBranch(ctx context.Context, candidate *release.ReleaseCandidate, job *queue.Job, description string, cache *payloadCache, opts RunOptions) {
	ctx = services.WithJobID(ctx, job.ID)
	ctx = services.WithDestination(ctx, job.Destination)
	logger := logging.WithContext(ctx, o.logger).With(logging.String(logging.FieldFormat, job.Format))

	dest, ok := o.cfg.FindDestination(job.Destination)
	if !ok {
		o.failJob(ctx, job, "destination "+job.Destination+" is not configured")
		return
	}

	// Transcode.
	o.transition(ctx, job, queue.StatusTranscoding, "transcode")
	payloadDir, err := o.preparePayload(ctx, candidate, job, cache)
	if err != nil {
		o.failJob(ctx, job, services.Details(err))
		return
	}
	job.PayloadPath = payloadDir
	o.transition(ctx, job, queue.StatusTranscoded, "")

	// Package.
	o.transition(ctx, job, queue.StatusPackaging, "package")
	descriptor, err := o.packager.Package(dest, payloadDir)
	if err != nil {
		o.failJob(ctx, job, services.Details(err))
		return
	}
	job.DescriptorPath = descriptor.Path
	o.transition(ctx, job, queue.StatusPackaged, "")

	// Last-minute duplicate re-check against the destination.
	if o.cfg.Upload.LastMinuteDupeCheck && !opts.OverrideDuplicates {
		if held := o.lastMinuteDupeCheck(ctx, candidate, job); held {
			return
		}
	}

	// Upload with bounded retries on transient failures.
	o.transition(ctx, job, queue.StatusUploading, "upload")
	sub := destination.Submission{
		ReleaseTitle:   candidate.DisplayName(),
		Format:         job.Format,
		PayloadDir:     payloadDir,
		DescriptorPath: descriptor.Path,
		Description:    o.describeFor(description, job.Format),
		RequestID:      opts.RequestID,
	}
	if err := o.uploadWithRetry(ctx, job, sub); err != nil {
		o.failJob(ctx, job, services.Details(err))
		return
	}
	o.transition(ctx, job, queue.StatusUploaded, "")

	// Inject. Transient client errors retry like uploads; a final failure
	// fails the job but never rolls back the completed upload, and
	// siblings are unaffected.
	o.transition(ctx, job, queue.StatusInjecting, "inject")
	client, err := o.clients(dest)
	if err != nil {
		o.failJob(ctx, job, services.Details(err))
		return
	}
	err = o.retryTransient(ctx, job, func() error {
		return client.Inject(ctx, descriptor, dest.SavePath, dest.Category)
	}, nil)
	if err != nil {
		o.failJob(ctx, job, services.Details(err))
		return
	}
	o.transition(ctx, job, queue.StatusSeeding, "")

	// Done, and only now does the catalog learn about the upload.
	o.transition(ctx, job, queue.StatusDone, "")
	o.appendCatalog(ctx, candidate, job)
	logger.Info("job done")
}

// preparePayload returns the folder to upload for the job's format,
// transcoding when the source format does not already satisfy it.
func (o *Orchestrator) preparePayload(ctx context.Context, candidate *release.ReleaseCandidate, job *queue.Job, cache *payloadCache) (string, error) {
	if passthrough(candidate.Format, job.Format) {
		return candidate.FolderPath, nil
	}
	return cache.get(strings.ToUpper(job.Format), func() (string, error) {
		stagingDir := filepath.Join(o.cfg.Paths.StagingDir, candidate.Fingerprint())
		result, err := o.engine.Transcode(ctx, candidate, job.Format, stagingDir)
		if err != nil {
			return "", err
		}
		return result.OutputDir, nil
	})
}

// passthrough reports whether the source folder already is the requested
// format. A plain FLAC target accepts any lossless source.
func passthrough(sourceFormat, jobFormat string) bool {
	source := strings.ToUpper(strings.TrimSpace(sourceFormat))
	target := strings.ToUpper(strings.TrimSpace(jobFormat))
	if source == target {
		return true
	}
	if target == "FLAC" && strings.HasSuffix(source, "FLAC") {
		return true
	}
	if target == "16BIT FLAC" && source == "FLAC" {
		return true
	}
	return false
}

func (o *Orchestrator) lastMinuteDupeCheck(ctx context.Context, candidate *release.ReleaseCandidate, job *queue.Job) bool {
	collaborator, err := o.registry.Lookup(job.Destination)
	if err != nil {
		return false
	}
	index, err := collaborator.RecentUploads(ctx)
	if err != nil {
		// Advisory re-check; a fetch failure does not stop the upload.
		o.logger.Warn("last-minute dupe check skipped",
			logging.String(logging.FieldDestination, job.Destination), logging.Error(err))
		return false
	}
	matches := o.dupes.Compare(candidate, dedupe.ParseRecentUploads(index, job.Destination))
	if dedupe.HasLikely(matches) {
		job.Status = queue.StatusHeld
		job.ErrorMessage = "likely duplicate appeared on " + job.Destination + " before upload"
		if err := o.store.Update(ctx, job); err != nil {
			o.logger.Error("persist hold failed", logging.Int64(logging.FieldJobID, job.ID), logging.Error(err))
		}
		return true
	}
	return false
}

func (o *Orchestrator) uploadWithRetry(ctx context.Context, job *queue.Job, sub destination.Submission) error {
	collaborator, err := o.registry.Lookup(job.Destination)
	if err != nil {
		return err
	}
	return o.retryTransient(ctx, job, func() error {
		return collaborator.Upload(ctx, sub)
	}, func(attempt int) {
		job.Attempts = attempt
		if err := o.store.Update(ctx, job); err != nil {
			o.logger.Error("persist attempt failed", logging.Int64(logging.FieldJobID, job.ID), logging.Error(err))
		}
	})
}

// retryTransient runs op with bounded attempts and doubling backoff,
// retrying only transient failures. onAttempt, when set, observes each
// attempt number before op runs.
func (o *Orchestrator) retryTransient(ctx context.Context, job *queue.Job, op func() error, onAttempt func(attempt int)) error {
	attempts := o.cfg.Upload.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := time.Duration(o.cfg.Upload.RetryBackoffSeconds) * time.Second

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if onAttempt != nil {
			onAttempt(attempt)
		}
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !services.Retryable(lastErr) || attempt == attempts {
			return lastErr
		}
		o.logger.Warn("transient failure, retrying",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.Int("attempt", attempt),
			logging.Error(lastErr))
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
	}
	return lastErr
}

func (o *Orchestrator) buildDescription(candidate *release.ReleaseCandidate, outcome *Outcome) string {
	return describe.Build(describe.Input{
		Candidate: candidate,
		Spectrals: outcome.Spectrals,
	})
}

// describeFor appends the lossy note for transcoded MP3 branches.
func (o *Orchestrator) describeFor(description, format string) string {
	upper := strings.ToUpper(format)
	if upper == "320" || upper == "V0" {
		return description + "\nTranscoded from the lossless source with tags reapplied.\n"
	}
	return description
}

func (o *Orchestrator) appendCatalog(ctx context.Context, candidate *release.ReleaseCandidate, job *queue.Job) {
	o.catalogMu.Lock()
	defer o.catalogMu.Unlock()
	entry := queue.CatalogEntry{
		Destination: job.Destination,
		Artist:      strings.Join(candidate.Artists, ", "),
		Title:       candidate.Title,
		Format:      job.Format,
		Year:        candidate.Year,
		EditionYear: candidate.EditionYear,
	}
	if _, err := o.store.AppendCatalogEntry(ctx, entry); err != nil {
		o.logger.Error("catalog append failed", logging.Int64(logging.FieldJobID, job.ID), logging.Error(err))
	}
}

func (o *Orchestrator) transition(ctx context.Context, job *queue.Job, status queue.Status, stage string) {
	job.Status = status
	job.Stage = stage
	if err := o.store.Update(ctx, job); err != nil {
		logger := logging.WithContext(services.WithStage(ctx, stage), o.logger)
		logger.Error("persist transition failed", logging.Int64(logging.FieldJobID, job.ID), logging.Error(err))
	}
}

func (o *Orchestrator) failJob(ctx context.Context, job *queue.Job, message string) {
	job.SetFailed(message)
	logger := logging.WithContext(ctx, o.logger)
	if err := o.store.Update(ctx, job); err != nil {
		logger.Error("persist failure failed", logging.Int64(logging.FieldJobID, job.ID), logging.Error(err))
	}
	logger.Warn("job failed",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldFormat, job.Format),
		logging.String("error", message))
}
