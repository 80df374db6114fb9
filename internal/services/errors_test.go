package services

import (
	"errors"
	"io"
	"testing"
)

func TestWrapTagsWithMarker(t *testing.T) {
	err := Wrap(ErrValidation, "integrity", "decode", "track 3 is corrupt", io.ErrUnexpectedEOF)

	if !errors.Is(err, ErrValidation) {
		t.Error("wrapped error lost its marker")
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("wrapped error lost its cause")
	}
	if errors.Is(err, ErrTransient) {
		t.Error("wrapped error matches an unrelated marker")
	}
}

func TestWrapNilMarkerDefaultsToTransient(t *testing.T) {
	err := Wrap(nil, "upload", "", "connection reset", nil)
	if !errors.Is(err, ErrTransient) {
		t.Error("nil marker should default to transient")
	}
}

func TestRetryable(t *testing.T) {
	if !Retryable(Wrap(ErrTransient, "upload", "", "timeout", nil)) {
		t.Error("transient errors must be retryable")
	}
	if Retryable(Wrap(ErrValidation, "integrity", "", "corrupt", nil)) {
		t.Error("validation errors must not be retryable")
	}
	if Retryable(nil) {
		t.Error("nil is not retryable")
	}
}

func TestDetailsStripsMarkerPrefix(t *testing.T) {
	err := Wrap(ErrExternalTool, "spectral", "render", "sox exited 2", nil)
	if got := Details(err); got != "spectral: render: sox exited 2" {
		t.Errorf("Details = %q", got)
	}
	if got := Details(nil); got != "" {
		t.Errorf("Details(nil) = %q", got)
	}
	if got := Details(errors.New("plain")); got != "plain" {
		t.Errorf("Details(plain) = %q", got)
	}
}

func TestWrapWithoutContextStillReadable(t *testing.T) {
	err := Wrap(ErrNotFound, "", "", "", nil)
	if got := Details(err); got != "service failure" {
		t.Errorf("Details = %q", got)
	}
}
