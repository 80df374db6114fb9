// Package integrity verifies that a release candidate's audio decodes
// cleanly and agrees with its rip log. Decode failures are fatal for the
// candidate; rip log disagreements are reported as warnings.
package integrity
