// Package release defines the ReleaseCandidate data model and builds
// candidates from a local folder of audio tracks.
package release
