// Package tools runs the external binaries the pipeline depends on (flac,
// sox, lame, oxipng, ffmpeg, mp3val) with context cancellation and
// captured output.
package tools
