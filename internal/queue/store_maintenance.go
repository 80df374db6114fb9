package queue

import (
	"context"
	"fmt"
	"time"
)

// resetTargets maps each in-flight status back to the checkpoint it
// resumes from after an unclean shutdown.
var resetTargets = map[Status]Status{
	StatusValidating:    StatusPending,
	StatusAnalyzing:     StatusValidated,
	StatusDedupChecking: StatusAnalyzed,
	StatusTranscoding:   StatusDedupChecked,
	StatusPackaging:     StatusTranscoded,
	StatusUploading:     StatusPackaged,
	StatusInjecting:     StatusUploaded,
	StatusSeeding:       StatusUploaded,
}

// ResetStuckProcessing rewinds jobs left mid-operation by a previous run
// to the checkpoint before the interrupted stage.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	var total int64
	for from, to := range resetTargets {
		res, err := s.execWithRetry(
			ctx,
			`UPDATE upload_jobs SET status = ?, stage = NULL, updated_at = ? WHERE status = ?`,
			to,
			time.Now().UTC().Format(time.RFC3339Nano),
			from,
		)
		if err != nil {
			return total, fmt.Errorf("reset %s jobs: %w", from, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("rows affected: %w", err)
		}
		total += affected
	}
	return total, nil
}
