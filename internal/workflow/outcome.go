package workflow

import (
	"coho/internal/dedupe"
	"coho/internal/integrity"
	"coho/internal/queue"
	"coho/internal/release"
	"coho/internal/requests"
	"coho/internal/spectral"
	"coho/internal/upconvert"
)

// Aggregate summarizes a run across all of its jobs.
type Aggregate string

const (
	AggregateAllDone   Aggregate = "all_done"
	AggregatePartial   Aggregate = "partial"
	AggregateAllFailed Aggregate = "all_failed"
	AggregateHeld      Aggregate = "held"
)

// Outcome is everything one pipeline run produced. Per-job stage and
// error detail live on the jobs themselves.
type Outcome struct {
	// RunID tags all log lines of one pipeline run.
	RunID        string
	Candidate    *release.ReleaseCandidate
	Jobs         []*queue.Job
	Aggregate    Aggregate
	Integrity    *integrity.Report
	Upconvert    *upconvert.Report
	Spectrals    *spectral.Report
	Dupes        []dedupe.Match
	RequestFills []requests.Fill
}

// finalize derives the aggregate from the terminal job states.
func (o *Outcome) finalize() {
	var done, failed, held int
	for _, job := range o.Jobs {
		switch job.Status {
		case queue.StatusDone:
			done++
		case queue.StatusFailed:
			failed++
		case queue.StatusHeld:
			held++
		}
	}
	total := len(o.Jobs)
	switch {
	case total == 0:
		o.Aggregate = AggregateAllFailed
	case done == total:
		o.Aggregate = AggregateAllDone
	case held == total:
		o.Aggregate = AggregateHeld
	case done == 0 && failed == total:
		o.Aggregate = AggregateAllFailed
	default:
		o.Aggregate = AggregatePartial
	}
}

// Succeeded reports whether every job finished.
func (o *Outcome) Succeeded() bool {
	return o.Aggregate == AggregateAllDone
}
