package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"channel-digest/shared/config"
	"channel-digest/shared/logging"
	"channel-digest/shared/monitoring"
)

// globalFlags override the loaded configuration when set.
type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
	geminiKey  string
	youtubeKey string
	model      string
}

type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     *config.Config
	logger     *slog.Logger
	monitor    *monitoring.Monitor
	configErr  error
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load(strings.TrimSpace(c.flags.configPath))
		if err != nil {
			c.configErr = err
			return
		}
		c.flags.apply(cfg)

		logger, err := logging.New(logging.Options{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
		})
		if err != nil {
			c.configErr = fmt.Errorf("failed to create logger: %w", err)
			return
		}
		c.config = cfg
		c.logger = logger
		c.monitor = monitoring.NewMonitor(logger)
	})
	return c.config, c.configErr
}

func (f *globalFlags) apply(cfg *config.Config) {
	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
	}
	if f.logFormat != "" {
		cfg.Logging.Format = f.logFormat
	}
	if f.geminiKey != "" {
		cfg.AI.GeminiAPIKey = f.geminiKey
	}
	if f.youtubeKey != "" {
		cfg.YouTube.APIKey = f.youtubeKey
	}
	if f.model != "" {
		cfg.AI.Model = f.model
	}
}

// outputDir returns the first positional argument, or the configured output directory.
func (c *commandContext) outputDir(args []string) string {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return args[0]
	}
	return c.config.Pipeline.OutputDir
}
