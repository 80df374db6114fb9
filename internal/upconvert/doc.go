// Package upconvert estimates whether high-bit-depth audio was padded up
// from a 16-bit source by measuring wasted bits across FLAC frames.
package upconvert
