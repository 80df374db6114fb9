// Package describe renders release descriptions as BBCode. Building is a
// pure function of its input; the same candidate always yields the same
// text.
package describe
