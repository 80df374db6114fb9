// Package destination abstracts the upload target. The pipeline talks to
// a Collaborator; what sits behind it (a tracker, a dry-run folder, a
// test stub) is the caller's choice from an enumerated registry.
package destination
