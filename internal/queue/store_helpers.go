package queue

import (
	"database/sql"
	"errors"
	"time"
)

const jobColumns = "id, fingerprint, release_title, folder_path, destination, format, status, stage, error_message, descriptor_path, payload_path, attempts, created_at, updated_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id             int64
		fingerprint    string
		releaseTitle   sql.NullString
		folderPath     string
		destination    string
		format         string
		statusStr      string
		stage          sql.NullString
		errorMessage   sql.NullString
		descriptorPath sql.NullString
		payloadPath    sql.NullString
		attempts       sql.NullInt64
		createdRaw     sql.NullString
		updatedRaw     sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&fingerprint,
		&releaseTitle,
		&folderPath,
		&destination,
		&format,
		&statusStr,
		&stage,
		&errorMessage,
		&descriptorPath,
		&payloadPath,
		&attempts,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:             id,
		Fingerprint:    fingerprint,
		ReleaseTitle:   releaseTitle.String,
		FolderPath:     folderPath,
		Destination:    destination,
		Format:         format,
		Status:         Status(statusStr),
		Stage:          stage.String,
		ErrorMessage:   errorMessage.String,
		DescriptorPath: descriptorPath.String,
		PayloadPath:    payloadPath.String,
		Attempts:       int(attempts.Int64),
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
