package destination

import (
	"context"
	"sort"

	"coho/internal/requests"
	"coho/internal/services"
)

// Submission is everything a destination receives for one upload.
type Submission struct {
	ReleaseTitle   string
	Format         string
	PayloadDir     string
	DescriptorPath string
	Description    string
	RequestID      string
}

// Collaborator is one upload destination. Implementations must be safe
// for concurrent use; jobs of sibling formats upload in parallel.
type Collaborator interface {
	Name() string
	// RecentUploads returns the destination's recent-uploads text index,
	// one release per line.
	RecentUploads(ctx context.Context) (string, error)
	// OpenRequests lists currently fillable requests.
	OpenRequests(ctx context.Context) ([]requests.Request, error)
	// Upload submits one release. A nil return means the destination
	// accepted it.
	Upload(ctx context.Context, sub Submission) error
}

// Registry holds the configured collaborators keyed by destination name.
type Registry struct {
	byName map[string]Collaborator
}

// NewRegistry indexes the given collaborators. Later duplicates of a name
// win, which lets tests shadow a default.
func NewRegistry(collaborators ...Collaborator) *Registry {
	byName := make(map[string]Collaborator, len(collaborators))
	for _, collaborator := range collaborators {
		byName[collaborator.Name()] = collaborator
	}
	return &Registry{byName: byName}
}

// Lookup resolves a destination by name.
func (r *Registry) Lookup(name string) (Collaborator, error) {
	if collaborator, ok := r.byName[name]; ok {
		return collaborator, nil
	}
	return nil, services.Wrap(services.ErrConfiguration, "destination", "lookup",
		"no collaborator registered for destination "+name, nil)
}

// Names returns the registered destination names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
