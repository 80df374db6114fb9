// Package queue persists upload jobs and the append-only catalog index in
// SQLite. One job exists per (destination, format) pair of a candidate;
// the catalog records prior successful uploads for duplicate checks.
package queue
