// Package workflow drives a release candidate through validation,
// analysis, duplicate checks, and the per-destination upload branches.
// Candidate-level stages run once; from transcoding onward every job is
// an independent state machine.
package workflow
