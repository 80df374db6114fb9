// Package workdir guards a candidate's staging area with a file lock so
// two runs cannot process the same release at once.
package workdir

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"coho/internal/services"
)

// Lock is a held working-directory lock. Release it when the pipeline
// run ends, success or not.
type Lock struct {
	flock *flock.Flock
	path  string
}

// Acquire takes the lock for one candidate fingerprint under stagingDir.
// A lock already held by another run fails fast.
func Acquire(stagingDir, fingerprint string) (*Lock, error) {
	if fingerprint == "" {
		return nil, services.Wrap(services.ErrValidation, "workdir", "lock", "fingerprint is empty", nil)
	}
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}

	path := filepath.Join(stagingDir, fingerprint+".lock")
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "workdir", "lock",
			"release "+fingerprint+" is already being processed", nil)
	}
	return &Lock{flock: fl, path: path}, nil
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Release drops the lock and removes the lock file.
func (l *Lock) Release() error {
	if l == nil || l.flock == nil {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	_ = os.Remove(l.path)
	return nil
}
