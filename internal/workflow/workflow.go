package workflow

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"coho/internal/config"
	"coho/internal/dedupe"
	"coho/internal/destination"
	"coho/internal/integrity"
	"coho/internal/logging"
	"coho/internal/queue"
	"coho/internal/release"
	"coho/internal/requests"
	"coho/internal/services"
	"coho/internal/spectral"
	"coho/internal/tools"
	"coho/internal/torrents"
	"coho/internal/transcode"
	"coho/internal/upconvert"
	"coho/internal/workdir"
)

// ClientFactory resolves the seeding client for a destination. Tests swap
// in a fake; production uses torrents.NewClient.
type ClientFactory func(dest config.Destination) (torrents.Client, error)

// Options carries the orchestrator's swappable collaborators.
type Options struct {
	Runner        ToolRunner
	ClientFactory ClientFactory
	Logger        *slog.Logger
}

// ToolRunner is the external-tool surface the pipeline stages need.
type ToolRunner interface {
	Run(ctx context.Context, name string, args ...string) (tools.Result, error)
	Pipe(ctx context.Context, first []string, second []string) error
}

func resolveRunner(opts *Options) ToolRunner {
	if opts != nil && opts.Runner != nil {
		return opts.Runner
	}
	return tools.Runner{}
}

// RunOptions selects what one pipeline run does.
type RunOptions struct {
	SourceTag          string
	Destinations       []string
	Formats            []string
	RequestID          string
	ApproveAll         bool
	OverrideDuplicates bool
}

// Orchestrator owns one pipeline run end to end.
type Orchestrator struct {
	cfg      *config.Config
	store    *queue.Store
	registry *destination.Registry
	logger   *slog.Logger

	validator *integrity.Validator
	detector  *upconvert.Detector
	spectrals *spectral.Pipeline
	dupes     *dedupe.Detector
	matcher   *requests.Matcher
	engine    *transcode.Engine
	packager  *torrents.Packager
	clients   ClientFactory

	// catalogMu serializes catalog appends; the catalog has one writer.
	catalogMu sync.Mutex
}

// New wires an Orchestrator. A nil Options uses production defaults.
func New(cfg *config.Config, store *queue.Store, registry *destination.Registry, opts *Options) *Orchestrator {
	var (
		logger  *slog.Logger
		clients ClientFactory
	)
	if opts != nil {
		logger = opts.Logger
		clients = opts.ClientFactory
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if clients == nil {
		clients = torrents.NewClient
	}
	run := resolveRunner(opts)

	return &Orchestrator{
		cfg:       cfg,
		store:     store,
		registry:  registry,
		logger:    logger.With(logging.String(logging.FieldComponent, "workflow")),
		validator: integrity.NewValidator(cfg, run, logger),
		detector:  upconvert.NewDetector(cfg, run, logger),
		spectrals: spectral.NewPipeline(cfg, run, logger),
		dupes:     dedupe.NewDetector(cfg.Dupe),
		matcher:   requests.NewMatcher(cfg.Dupe),
		engine:    transcode.NewEngine(cfg, run, logger),
		packager:  torrents.NewPackager(cfg, logger),
		clients:   clients,
	}
}

// Process runs the whole pipeline for one release folder and returns the
// outcome regardless of how far it got; the error is non-nil only for
// failures before any job existed.
func (o *Orchestrator) Process(ctx context.Context, folderPath string, opts RunOptions) (*Outcome, error) {
	candidate, err := release.Scan(folderPath)
	if err != nil {
		return nil, err
	}
	return o.ProcessCandidate(ctx, candidate, opts)
}

// ProcessCandidate runs the pipeline for an already scanned candidate.
func (o *Orchestrator) ProcessCandidate(ctx context.Context, candidate *release.ReleaseCandidate, opts RunOptions) (*Outcome, error) {
	if opts.SourceTag != "" {
		candidate.Source = opts.SourceTag
	}

	lock, err := workdir.Acquire(o.cfg.Paths.StagingDir, candidate.Fingerprint())
	if err != nil {
		return nil, err
	}
	defer func() { _ = lock.Release() }()

	outcome := &Outcome{Candidate: candidate, RunID: uuid.NewString()}
	ctx = services.WithRequestID(ctx, outcome.RunID)
	jobs, err := o.fanOut(ctx, candidate, opts)
	if err != nil {
		return nil, err
	}
	outcome.Jobs = jobs
	o.logger.Info("pipeline started",
		logging.String("run_id", outcome.RunID),
		logging.String("release", candidate.DisplayName()),
		logging.Int("jobs", len(jobs)))

	if !o.candidateStages(ctx, candidate, outcome, opts) {
		outcome.finalize()
		return outcome, nil
	}

	o.runBranches(ctx, candidate, outcome, opts)
	outcome.finalize()
	logging.WithContext(ctx, o.logger).Info("pipeline finished", logging.String("aggregate", string(outcome.Aggregate)))
	return outcome, nil
}

// fanOut creates one pending job per (destination, format) pair of the
// involved destinations.
func (o *Orchestrator) fanOut(ctx context.Context, candidate *release.ReleaseCandidate, opts RunOptions) ([]*queue.Job, error) {
	destinations := o.selectDestinations(opts)
	if len(destinations) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "fanout", "no destinations selected", nil)
	}

	var jobs []*queue.Job
	for _, dest := range destinations {
		for _, format := range selectFormats(dest.Formats, opts.Formats) {
			job, err := o.store.NewJob(ctx, candidate.Fingerprint(), candidate.DisplayName(), candidate.FolderPath, dest.Name, format)
			if errors.Is(err, services.ErrDuplicate) {
				// A previous run already created this job; take it over.
				job, err = o.reclaimJob(ctx, candidate.Fingerprint(), dest.Name, format)
			}
			if err != nil {
				return nil, err
			}
			jobs = append(jobs, job)
		}
	}
	if len(jobs) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "fanout", "no destination carries the requested formats", nil)
	}
	return jobs, nil
}

// reclaimJob rewinds the prior run's job for one tuple to pending so the
// new run owns it from the start.
func (o *Orchestrator) reclaimJob(ctx context.Context, fingerprint, destName, format string) (*queue.Job, error) {
	existing, err := o.store.JobsByFingerprint(ctx, fingerprint)
	if err != nil {
		return nil, err
	}
	for _, job := range existing {
		if job.Destination != destName || job.Format != format {
			continue
		}
		job.Status = queue.StatusPending
		job.Stage = ""
		job.ErrorMessage = ""
		job.Attempts = 0
		if err := o.store.Update(ctx, job); err != nil {
			return nil, err
		}
		return job, nil
	}
	return nil, services.Wrap(services.ErrNotFound, "workflow", "fanout",
		"existing job for "+destName+"/"+format+" could not be loaded", nil)
}

// selectFormats narrows a destination's format list to the requested
// formats, or returns it unchanged when none were requested.
func selectFormats(configured, requested []string) []string {
	if len(requested) == 0 {
		return configured
	}
	wanted := make(map[string]bool, len(requested))
	for _, format := range requested {
		wanted[strings.ToUpper(strings.TrimSpace(format))] = true
	}
	var selected []string
	for _, format := range configured {
		if wanted[strings.ToUpper(format)] {
			selected = append(selected, format)
		}
	}
	return selected
}

func (o *Orchestrator) selectDestinations(opts RunOptions) []config.Destination {
	if len(opts.Destinations) == 0 {
		return o.cfg.Destinations
	}
	wanted := make(map[string]bool, len(opts.Destinations))
	for _, name := range opts.Destinations {
		wanted[strings.ToLower(strings.TrimSpace(name))] = true
	}
	var selected []config.Destination
	for _, dest := range o.cfg.Destinations {
		if wanted[strings.ToLower(dest.Name)] {
			selected = append(selected, dest)
		}
	}
	return selected
}

// candidateStages runs validation, analysis, and the duplicate gate once
// and applies the result to every job. It reports whether the per-job
// branches should run.
func (o *Orchestrator) candidateStages(ctx context.Context, candidate *release.ReleaseCandidate, outcome *Outcome, opts RunOptions) bool {
	// Validation.
	ctx = services.WithStage(ctx, "integrity")
	o.transitionAll(ctx, outcome.Jobs, queue.StatusValidating, "integrity")
	report, err := o.validator.Validate(ctx, candidate)
	outcome.Integrity = report
	if err != nil {
		o.failAll(ctx, outcome.Jobs, services.Details(err))
		return false
	}
	o.transitionAll(ctx, outcome.Jobs, queue.StatusValidated, "")
	if ctx.Err() != nil {
		o.failAll(ctx, outcome.Jobs, "canceled")
		return false
	}

	// Analysis: upconvert estimate plus the spectral pipeline.
	ctx = services.WithStage(ctx, "analysis")
	o.transitionAll(ctx, outcome.Jobs, queue.StatusAnalyzing, "analysis")
	if candidate.MaxBitDepth() > 16 {
		upReport, upErr := o.detector.Analyze(ctx, candidate)
		if upErr != nil {
			o.failAll(ctx, outcome.Jobs, services.Details(upErr))
			return false
		}
		outcome.Upconvert = upReport
	}
	spectralDir := filepath.Join(o.cfg.Paths.StagingDir, candidate.Fingerprint(), "spectrals")
	specReport, specErr := o.spectrals.Generate(ctx, candidate, spectralDir)
	if specErr != nil {
		o.failAll(ctx, outcome.Jobs, services.Details(specErr))
		return false
	}
	outcome.Spectrals = specReport
	o.transitionAll(ctx, outcome.Jobs, queue.StatusAnalyzed, "")

	if blocked, reason := o.approvalBlocked(outcome, opts); blocked {
		o.holdAll(ctx, outcome.Jobs, reason)
		return false
	}

	// Duplicate gate.
	ctx = services.WithStage(ctx, "dedupe")
	o.transitionAll(ctx, outcome.Jobs, queue.StatusDedupChecking, "dedupe")
	matches, dupErr := o.collectMatches(ctx, candidate, outcome.Jobs)
	if dupErr != nil {
		o.failAll(ctx, outcome.Jobs, services.Details(dupErr))
		return false
	}
	outcome.Dupes = matches
	if dedupe.HasLikely(matches) && !opts.OverrideDuplicates {
		o.holdAll(ctx, outcome.Jobs, "likely duplicate on "+matches[0].Entry.Destination)
		return false
	}
	o.transitionAll(ctx, outcome.Jobs, queue.StatusDedupChecked, "")

	// Request matching is advisory unless an explicit id was named.
	ctx = services.WithStage(ctx, "requests")
	if opts.RequestID != "" || o.cfg.Upload.CheckRequests {
		fills, reqErr := o.matchRequests(ctx, candidate, outcome.Jobs, opts.RequestID)
		if reqErr != nil {
			if opts.RequestID != "" {
				o.failAll(ctx, outcome.Jobs, services.Details(reqErr))
				return false
			}
			logging.WithContext(ctx, o.logger).Warn("request scan failed", logging.Error(reqErr))
		}
		outcome.RequestFills = fills
	}
	return ctx.Err() == nil
}

// approvalBlocked decides whether analysis results park the candidate.
// An inconclusive upconvert verdict is surfaced but never blocks.
func (o *Orchestrator) approvalBlocked(outcome *Outcome, opts RunOptions) (bool, string) {
	if opts.ApproveAll {
		return false, ""
	}
	if outcome.Upconvert != nil && outcome.Upconvert.Verdict == upconvert.VerdictLikelyUpconvert {
		return true, "wasted-bits analysis flags a likely upconvert"
	}
	if outcome.Spectrals != nil && !outcome.Spectrals.AllOK() {
		return true, "spectral verification failed for " + strings.Join(outcome.Spectrals.Failed(), ", ")
	}
	return false, ""
}

// collectMatches merges the local catalog and each involved destination's
// recent-uploads index into one comparison set.
func (o *Orchestrator) collectMatches(ctx context.Context, candidate *release.ReleaseCandidate, jobs []*queue.Job) ([]dedupe.Match, error) {
	var entries []dedupe.Entry
	for _, name := range jobDestinations(jobs) {
		catalog, err := o.store.CatalogByDestination(ctx, name)
		if err != nil {
			return nil, err
		}
		entries = append(entries, dedupe.FromCatalog(catalog)...)

		collaborator, err := o.registry.Lookup(name)
		if err != nil {
			return nil, err
		}
		index, err := collaborator.RecentUploads(ctx)
		if err != nil {
			return nil, services.Wrap(services.ErrTransient, "workflow", "dedupe", "recent uploads fetch failed for "+name, err)
		}
		entries = append(entries, dedupe.ParseRecentUploads(index, name)...)
	}
	return o.dupes.Compare(candidate, entries), nil
}

func (o *Orchestrator) matchRequests(ctx context.Context, candidate *release.ReleaseCandidate, jobs []*queue.Job, explicitID string) ([]requests.Fill, error) {
	var fills []requests.Fill
	for _, name := range jobDestinations(jobs) {
		collaborator, err := o.registry.Lookup(name)
		if err != nil {
			return nil, err
		}
		open, err := collaborator.OpenRequests(ctx)
		if err != nil {
			return nil, services.Wrap(services.ErrTransient, "workflow", "requests", "open requests fetch failed for "+name, err)
		}
		matched, err := o.matcher.Match(candidate, open, explicitID)
		if err != nil {
			return nil, err
		}
		fills = append(fills, matched...)
	}
	return fills, nil
}

func jobDestinations(jobs []*queue.Job) []string {
	seen := make(map[string]bool, len(jobs))
	var names []string
	for _, job := range jobs {
		if !seen[job.Destination] {
			seen[job.Destination] = true
			names = append(names, job.Destination)
		}
	}
	return names
}

func (o *Orchestrator) transitionAll(ctx context.Context, jobs []*queue.Job, status queue.Status, stage string) {
	logger := logging.WithContext(ctx, o.logger)
	for _, job := range jobs {
		if job.Status.Terminal() || job.Status == queue.StatusHeld {
			continue
		}
		job.Status = status
		job.Stage = stage
		if err := o.store.Update(ctx, job); err != nil {
			logger.Error("persist transition failed", logging.Int64(logging.FieldJobID, job.ID), logging.Error(err))
		}
	}
}

func (o *Orchestrator) failAll(ctx context.Context, jobs []*queue.Job, message string) {
	for _, job := range jobs {
		if job.Status.Terminal() {
			continue
		}
		job.SetFailed(message)
		if err := o.store.Update(ctx, job); err != nil {
			logging.WithContext(ctx, o.logger).Error("persist failure failed", logging.Int64(logging.FieldJobID, job.ID), logging.Error(err))
		}
	}
}

func (o *Orchestrator) holdAll(ctx context.Context, jobs []*queue.Job, reason string) {
	logger := logging.WithContext(ctx, o.logger)
	logger.Warn("candidate held", logging.String("reason", reason))
	for _, job := range jobs {
		if job.Status.Terminal() {
			continue
		}
		job.Status = queue.StatusHeld
		job.ErrorMessage = reason
		if err := o.store.Update(ctx, job); err != nil {
			logger.Error("persist hold failed", logging.Int64(logging.FieldJobID, job.ID), logging.Error(err))
		}
	}
}

