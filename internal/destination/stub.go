package destination

import (
	"context"
	"sync"

	"coho/internal/requests"
)

// Stub is an in-memory Collaborator for tests and dry runs. Every field
// is optional; the zero value accepts all uploads.
type Stub struct {
	DestName    string
	RecentIndex string
	RecentErr   error
	Requests    []requests.Request
	RequestsErr error
	UploadErr   func(sub Submission) error

	mu      sync.Mutex
	uploads []Submission
}

// NewStub builds a Stub for the given destination name.
func NewStub(name string) *Stub {
	return &Stub{DestName: name}
}

func (s *Stub) Name() string { return s.DestName }

func (s *Stub) RecentUploads(context.Context) (string, error) {
	if s.RecentErr != nil {
		return "", s.RecentErr
	}
	return s.RecentIndex, nil
}

func (s *Stub) OpenRequests(context.Context) ([]requests.Request, error) {
	if s.RequestsErr != nil {
		return nil, s.RequestsErr
	}
	return append([]requests.Request(nil), s.Requests...), nil
}

func (s *Stub) Upload(_ context.Context, sub Submission) error {
	if s.UploadErr != nil {
		if err := s.UploadErr(sub); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads = append(s.uploads, sub)
	return nil
}

// Uploads returns a copy of the accepted submissions.
func (s *Stub) Uploads() []Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Submission(nil), s.uploads...)
}
