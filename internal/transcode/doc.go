// Package transcode produces alternate encodes of a candidate: 16-bit
// downconverts through sox and lossy MP3 encodes through a flac-to-lame
// pipe. Each target format is an independent branch; a branch is complete
// only when every track of it finished.
package transcode
