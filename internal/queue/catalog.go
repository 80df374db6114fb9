package queue

import (
	"context"
	"fmt"
	"time"
)

// AppendCatalogEntry records a completed upload. Entries are never updated
// or deleted; the catalog only grows.
func (s *Store) AppendCatalogEntry(ctx context.Context, entry CatalogEntry) (int64, error) {
	if entry.UploadedAt.IsZero() {
		entry.UploadedAt = time.Now().UTC()
	}
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO catalog_entries (
            destination, artist, title, format, year, edition_year, uploaded_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.Destination,
		entry.Artist,
		entry.Title,
		entry.Format,
		entry.Year,
		entry.EditionYear,
		entry.UploadedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("append catalog entry: %w", err)
	}
	return res.LastInsertId()
}

// CatalogByDestination returns recorded uploads for one destination,
// newest first.
func (s *Store) CatalogByDestination(ctx context.Context, destination string) ([]CatalogEntry, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, destination, artist, title, format, year, edition_year, uploaded_at
         FROM catalog_entries WHERE destination = ? ORDER BY uploaded_at DESC, id DESC`,
		destination,
	)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	defer rows.Close()

	var entries []CatalogEntry
	for rows.Next() {
		var (
			entry       CatalogEntry
			uploadedRaw string
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.Destination,
			&entry.Artist,
			&entry.Title,
			&entry.Format,
			&entry.Year,
			&entry.EditionYear,
			&uploadedRaw,
		); err != nil {
			return nil, err
		}
		if uploaded, err := parseTimeString(uploadedRaw); err == nil {
			entry.UploadedAt = uploaded
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// CatalogCount reports the total number of recorded uploads.
func (s *Store) CatalogCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM catalog_entries`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count catalog: %w", err)
	}
	return count, nil
}
