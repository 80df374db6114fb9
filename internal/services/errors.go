package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks fatal validation failures: corrupt or unreadable
	// audio. The whole candidate aborts.
	ErrValidation = errors.New("validation error")
	// ErrMismatch marks content disagreement: a compressed spectrogram
	// that no longer matches the original. Surfaced for an explicit
	// decision, never aborts the candidate on its own.
	ErrMismatch = errors.New("content mismatch")
	// ErrDuplicate marks work that already exists: a job re-created for
	// a (release, destination, format) tuple the queue already holds.
	ErrDuplicate = errors.New("already exists")
	// ErrTransient marks infrastructure failures worth retrying with backoff.
	ErrTransient = errors.New("transient failure")
	// ErrExternalTool marks failures of invoked binaries (sox, flac, ...).
	ErrExternalTool = errors.New("external tool error")
	// ErrInjection marks torrent-client injection failures. Non-fatal to the
	// candidate; the completed upload is not rolled back.
	ErrInjection = errors.New("injection error")
	// ErrConfiguration marks invalid or missing configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound marks missing resources.
	ErrNotFound = errors.New("not found")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether the error should be retried with backoff.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransient)
}

// Details returns the human-readable portion of a wrapped service error.
func Details(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, marker := range []error{
		ErrValidation, ErrMismatch, ErrDuplicate,
		ErrTransient, ErrExternalTool, ErrInjection, ErrConfiguration, ErrNotFound,
	} {
		prefix := marker.Error() + ": "
		if strings.HasPrefix(msg, prefix) {
			return strings.TrimPrefix(msg, prefix)
		}
	}
	return msg
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
