package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of an upload job.
type Status string

const (
	StatusPending       Status = "pending"
	StatusValidating    Status = "validating"
	StatusValidated     Status = "validated"
	StatusAnalyzing     Status = "analyzing"
	StatusAnalyzed      Status = "analyzed"
	StatusDedupChecking Status = "dedup_checking"
	StatusDedupChecked  Status = "dedup_checked"
	// StatusHeld parks a job on a likely-duplicate match until an explicit
	// override releases or fails it.
	StatusHeld        Status = "held"
	StatusTranscoding Status = "transcoding"
	StatusTranscoded  Status = "transcoded"
	StatusPackaging   Status = "packaging"
	StatusPackaged    Status = "packaged"
	StatusUploading   Status = "uploading"
	StatusUploaded    Status = "uploaded"
	StatusInjecting   Status = "injecting"
	StatusSeeding     Status = "seeding"
	StatusDone        Status = "done"
	StatusFailed      Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusValidating,
	StatusValidated,
	StatusAnalyzing,
	StatusAnalyzed,
	StatusDedupChecking,
	StatusDedupChecked,
	StatusHeld,
	StatusTranscoding,
	StatusTranscoded,
	StatusPackaging,
	StatusPackaged,
	StatusUploading,
	StatusUploaded,
	StatusInjecting,
	StatusSeeding,
	StatusDone,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusValidating:    {},
	StatusAnalyzing:     {},
	StatusDedupChecking: {},
	StatusTranscoding:   {},
	StatusPackaging:     {},
	StatusUploading:     {},
	StatusInjecting:     {},
	StatusSeeding:       {},
}

// Job represents one (destination, format) upload persisted in SQLite.
// Jobs of the same candidate share no mutable state.
type Job struct {
	ID             int64
	Fingerprint    string
	ReleaseTitle   string
	FolderPath     string
	Destination    string
	Format         string
	Status         Status
	Stage          string
	ErrorMessage   string
	DescriptorPath string
	PayloadPath    string
	Attempts       int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Terminal reports whether the status is an end state.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// IsProcessing reports whether the job reflects an in-flight operation.
func (j Job) IsProcessing() bool {
	_, ok := processingStatuses[j.Status]
	return ok
}

// SetFailed marks the job as failed with the given error message.
func (j *Job) SetFailed(message string) {
	j.Status = StatusFailed
	j.ErrorMessage = message
}

// CatalogEntry is one prior successful upload recorded for duplicate checks.
// Entries are append-only; nothing ever rewrites them.
type CatalogEntry struct {
	ID          int64
	Destination string
	Artist      string
	Title       string
	Format      string
	Year        int
	EditionYear int
	UploadedAt  time.Time
}

// Summary aggregates per-status job counts for presentation.
type Summary struct {
	Total      int
	Pending    int
	Processing int
	Held       int
	Done       int
	Failed     int
}
