// Package spectral renders, compresses, and verifies spectrogram images
// for every track of a candidate. Each track is an independent unit of
// work; one bad track never sinks the rest of the report.
package spectral
