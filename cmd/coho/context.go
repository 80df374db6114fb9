package main

import (
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"coho/internal/config"
	"coho/internal/destination"
	"coho/internal/logging"
	"coho/internal/queue"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return logging.NewFromConfig(cfg)
}

func (c *commandContext) withStore(fn func(cfg *config.Config, store *queue.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(cfg, store)
}

// registry builds the destination collaborators. Every configured
// destination exports through the outbox under the staging dir.
func (c *commandContext) registry(cfg *config.Config) *destination.Registry {
	collaborators := make([]destination.Collaborator, 0, len(cfg.Destinations))
	for _, dest := range cfg.Destinations {
		exportDir := filepath.Join(cfg.Paths.StagingDir, "outbox", dest.Name)
		collaborators = append(collaborators, destination.NewManual(dest.Name, exportDir))
	}
	return destination.NewRegistry(collaborators...)
}
