package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"coho/internal/services"
)

// NewJob inserts a pending job for one (destination, format) pair.
func (s *Store) NewJob(ctx context.Context, fingerprint, releaseTitle, folderPath, destination, format string) (*Job, error) {
	switch {
	case fingerprint == "":
		return nil, errors.New("fingerprint is required")
	case folderPath == "":
		return nil, errors.New("folder path is required")
	case destination == "":
		return nil, errors.New("destination is required")
	case format == "":
		return nil, errors.New("format is required")
	}
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO upload_jobs (
            fingerprint, release_title, folder_path, destination, format,
            status, attempts, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fingerprint,
		nullableString(releaseTitle),
		folderPath,
		destination,
		format,
		StatusPending,
		0,
		timestamp,
		timestamp,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, services.Wrap(services.ErrDuplicate, "queue", "new job",
				fmt.Sprintf("a %s job for %s already targets %s", format, fingerprint, destination), nil)
		}
		return nil, fmt.Errorf("insert job: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches an upload job by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM upload_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// JobsByFingerprint returns every job belonging to one release candidate.
func (s *Store) JobsByFingerprint(ctx context.Context, fingerprint string) ([]*Job, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+jobColumns+` FROM upload_jobs WHERE fingerprint = ? ORDER BY id`,
		fingerprint,
	)
	if err != nil {
		return nil, fmt.Errorf("query by fingerprint: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// Update persists changes to an existing job.
func (s *Store) Update(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	job.UpdatedAt = time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE upload_jobs
         SET fingerprint = ?, release_title = ?, folder_path = ?, destination = ?,
             format = ?, status = ?, stage = ?, error_message = ?,
             descriptor_path = ?, payload_path = ?, attempts = ?, updated_at = ?
         WHERE id = ?`,
		job.Fingerprint,
		nullableString(job.ReleaseTitle),
		job.FolderPath,
		job.Destination,
		job.Format,
		job.Status,
		nullableString(job.Stage),
		nullableString(job.ErrorMessage),
		nullableString(job.DescriptorPath),
		nullableString(job.PayloadPath),
		job.Attempts,
		job.UpdatedAt.Format(time.RFC3339Nano),
		job.ID,
	); err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// List returns jobs filtered by status set (or all jobs when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + jobColumns + ` FROM upload_jobs`
	orderClause := ` ORDER BY created_at, id`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// NextForStatuses returns the oldest job matching any of the provided statuses.
func (s *Store) NextForStatuses(ctx context.Context, statuses ...Status) (*Job, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := makePlaceholders(len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}

	query := `SELECT ` + jobColumns + ` FROM upload_jobs WHERE status IN (` + placeholders + `) ORDER BY created_at, id LIMIT 1`
	row := s.db.QueryRowContext(ctx, query, args...)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// Remove deletes a job by identifier.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM upload_jobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Clear removes all jobs.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM upload_jobs`)
	if err != nil {
		return 0, fmt.Errorf("clear jobs: %w", err)
	}
	return res.RowsAffected()
}

// ClearDone removes only completed jobs.
func (s *Store) ClearDone(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM upload_jobs WHERE status = ?`, StatusDone)
	if err != nil {
		return 0, fmt.Errorf("clear done: %w", err)
	}
	return res.RowsAffected()
}

// ClearFailed removes only failed jobs.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM upload_jobs WHERE status = ?`, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("clear failed: %w", err)
	}
	return res.RowsAffected()
}

// Summarize aggregates job counts by broad lifecycle bucket.
func (s *Store) Summarize(ctx context.Context) (Summary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM upload_jobs GROUP BY status`)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize jobs: %w", err)
	}
	defer rows.Close()

	var summary Summary
	for rows.Next() {
		var (
			statusStr string
			count     int
		)
		if err := rows.Scan(&statusStr, &count); err != nil {
			return Summary{}, err
		}
		summary.Total += count
		switch status := Status(statusStr); {
		case status == StatusPending:
			summary.Pending += count
		case status == StatusHeld:
			summary.Held += count
		case status == StatusDone:
			summary.Done += count
		case status == StatusFailed:
			summary.Failed += count
		default:
			summary.Processing += count
		}
	}
	return summary, rows.Err()
}

func collectJobs(rows *sql.Rows) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
