package config

const (
	defaultStagingDir = "~/.local/share/coho/staging"
	defaultLogDir     = "~/.local/share/coho/logs"
	defaultTorrentDir = "~/.local/share/coho/torrents"

	defaultWorkers             = 4
	defaultRetryAttempts       = 3
	defaultRetryBackoffSeconds = 2
	defaultDurationToleranceS  = 2

	defaultDupeTolerance      = 0.4
	defaultDupeRelevanceFloor = 0.25
	defaultArtistWeight       = 0.35
	defaultTitleWeight        = 0.35
	defaultFormatWeight       = 0.10
	defaultYearWeight         = 0.20

	defaultSpectralFullWidth   = 2000
	defaultSpectralFullHeight  = 513
	defaultSpectralZoomWidth   = 500
	defaultSpectralZoomHeight  = 1025
	defaultSpectralZoomSeconds = 2
	defaultSpectralZLevel      = 120
	defaultSpectralCompression = 2
	defaultPixelTolerance      = 0

	defaultFlacCompressionLevel = 8

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
			TorrentDir: defaultTorrentDir,
		},
		Upload: Upload{
			Workers:             defaultWorkers,
			RetryAttempts:       defaultRetryAttempts,
			RetryBackoffSeconds: defaultRetryBackoffSeconds,
			DurationToleranceS:  defaultDurationToleranceS,
			CheckRequests:       true,
			LastMinuteDupeCheck: true,
		},
		Dupe: Dupe{
			Tolerance:      defaultDupeTolerance,
			RelevanceFloor: defaultDupeRelevanceFloor,
			ArtistWeight:   defaultArtistWeight,
			TitleWeight:    defaultTitleWeight,
			FormatWeight:   defaultFormatWeight,
			YearWeight:     defaultYearWeight,
		},
		Spectral: Spectral{
			FullWidth:        defaultSpectralFullWidth,
			FullHeight:       defaultSpectralFullHeight,
			ZoomWidth:        defaultSpectralZoomWidth,
			ZoomHeight:       defaultSpectralZoomHeight,
			ZoomSeconds:      defaultSpectralZoomSeconds,
			ZLevel:           defaultSpectralZLevel,
			CompressionLevel: defaultSpectralCompression,
			PixelTolerance:   defaultPixelTolerance,
		},
		Transcode: Transcode{
			FlacCompressionLevel: defaultFlacCompressionLevel,
		},
		Tools: Tools{
			Flac:   "flac",
			Mp3val: "mp3val",
			Sox:    "sox",
			Lame:   "lame",
			Oxipng: "oxipng",
			FFmpeg: "ffmpeg",
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
