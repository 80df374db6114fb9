package config

import (
	"errors"
	"fmt"
	"strings"
)

var knownFormats = map[string]struct{}{
	"FLAC":       {},
	"16BIT FLAC": {},
	"320":        {},
	"V0":         {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateUpload(); err != nil {
		return err
	}
	if err := c.validateDupe(); err != nil {
		return err
	}
	if err := c.validateTranscode(); err != nil {
		return err
	}
	if err := c.validateSpectral(); err != nil {
		return err
	}
	if err := c.validateDestinations(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateUpload() error {
	if c.Upload.Workers < 1 {
		return errors.New("upload.workers must be at least 1")
	}
	if c.Upload.RetryAttempts < 1 {
		return errors.New("upload.retry_attempts must be at least 1")
	}
	return nil
}

func (c *Config) validateDupe() error {
	if c.Dupe.Tolerance < 0 || c.Dupe.Tolerance > 1 {
		return errors.New("dupe.tolerance must be between 0 and 1")
	}
	if c.Dupe.RelevanceFloor < 0 || c.Dupe.RelevanceFloor > 1 {
		return errors.New("dupe.relevance_floor must be between 0 and 1")
	}
	total := c.Dupe.ArtistWeight + c.Dupe.TitleWeight + c.Dupe.FormatWeight + c.Dupe.YearWeight
	if total <= 0 {
		return errors.New("dupe field weights must sum to a positive value")
	}
	return nil
}

func (c *Config) validateTranscode() error {
	if c.Transcode.FlacCompressionLevel < 0 || c.Transcode.FlacCompressionLevel > 8 {
		return errors.New("transcode.flac_compression_level must be between 0 and 8")
	}
	return nil
}

func (c *Config) validateSpectral() error {
	if c.Spectral.FullWidth < 1 || c.Spectral.FullHeight < 1 {
		return errors.New("spectral.full_width and spectral.full_height must be positive")
	}
	if c.Spectral.ZoomWidth < 1 || c.Spectral.ZoomHeight < 1 {
		return errors.New("spectral.zoom_width and spectral.zoom_height must be positive")
	}
	if c.Spectral.PixelTolerance < 0 {
		return errors.New("spectral.pixel_tolerance must not be negative")
	}
	return nil
}

func (c *Config) validateDestinations() error {
	seen := make(map[string]struct{}, len(c.Destinations))
	for _, dest := range c.Destinations {
		if dest.Name == "" {
			return errors.New("destinations: name must be set")
		}
		key := strings.ToLower(dest.Name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("destinations: duplicate name %q", dest.Name)
		}
		seen[key] = struct{}{}
		if dest.Announce == "" {
			return fmt.Errorf("destinations.%s: announce must be set", dest.Name)
		}
		if len(dest.Formats) == 0 {
			return fmt.Errorf("destinations.%s: at least one format must be configured", dest.Name)
		}
		for _, format := range dest.Formats {
			if _, ok := knownFormats[format]; !ok {
				return fmt.Errorf("destinations.%s: unknown format %q", dest.Name, format)
			}
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}
