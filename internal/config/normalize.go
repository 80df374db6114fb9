package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeUpload()
	c.normalizeDestinations()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.TorrentDir, err = expandPath(c.Paths.TorrentDir); err != nil {
		return fmt.Errorf("paths.torrent_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeUpload() {
	if c.Upload.Workers <= 0 {
		c.Upload.Workers = defaultWorkers
	}
	if c.Upload.RetryAttempts <= 0 {
		c.Upload.RetryAttempts = defaultRetryAttempts
	}
	if c.Upload.RetryBackoffSeconds <= 0 {
		c.Upload.RetryBackoffSeconds = defaultRetryBackoffSeconds
	}
	if c.Upload.DurationToleranceS <= 0 {
		c.Upload.DurationToleranceS = defaultDurationToleranceS
	}
}

func (c *Config) normalizeDestinations() {
	for i := range c.Destinations {
		dest := &c.Destinations[i]
		dest.Name = strings.TrimSpace(dest.Name)
		dest.Announce = strings.TrimSpace(dest.Announce)
		dest.SourceTag = strings.TrimSpace(dest.SourceTag)
		dest.ClientURL = strings.TrimSpace(dest.ClientURL)
		formats := make([]string, 0, len(dest.Formats))
		for _, format := range dest.Formats {
			if trimmed := strings.TrimSpace(format); trimmed != "" {
				formats = append(formats, strings.ToUpper(trimmed))
			}
		}
		dest.Formats = formats
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
