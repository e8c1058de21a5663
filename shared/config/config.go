package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultFile is read when no config path is given and the file exists.
const DefaultFile = "channeltool.yaml"

// DefaultMinDurationSeconds skips Shorts unless the config says otherwise.
const DefaultMinDurationSeconds = 120

// ErrMissingCredential is returned when a stage needs a key that is not configured.
var ErrMissingCredential = errors.New("missing credential")

type Config struct {
	YouTube  YouTubeConfig  `yaml:"youtube"`
	AI       AIConfig       `yaml:"ai"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type YouTubeConfig struct {
	APIKey            string  `yaml:"api_key"`
	ClientID          string  `yaml:"client_id"`
	ClientSecret      string  `yaml:"client_secret"`
	TokenFile         string  `yaml:"token_file"`
	CaptionLanguage   string  `yaml:"caption_language"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

type AIConfig struct {
	GeminiAPIKey    string `yaml:"gemini_api_key"`
	Model           string `yaml:"model"`
	MaxOutputTokens int32  `yaml:"max_output_tokens"`
}

type PipelineConfig struct {
	OutputDir          string `yaml:"output_dir"`
	After              string `yaml:"after"`
	MinDurationSeconds *int   `yaml:"min_duration_seconds"`
	StaleStreak        int    `yaml:"stale_streak"`
	BatchSize          int    `yaml:"batch_size"`
	Concurrency        int    `yaml:"concurrency"`
	Timestamps         *bool  `yaml:"timestamps"`
	Enhance            bool   `yaml:"enhance"`
	MaxAttempts        int    `yaml:"max_attempts"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a configuration with every default applied and no credentials.
func Default() Config {
	var cfg Config
	cfg.applyDefaults()
	return cfg
}

// Load builds the configuration from .env, an optional YAML file and the environment.
// An explicit path (or CONFIG_FILE) must exist; the default file is optional.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	configFile := strings.TrimSpace(path)
	explicit := configFile != ""
	if !explicit {
		configFile = os.Getenv("CONFIG_FILE")
		explicit = configFile != ""
	}
	if configFile == "" {
		configFile = DefaultFile
	}

	var cfg Config
	data, err := os.ReadFile(configFile)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configFile, err)
		}
	case os.IsNotExist(err) && !explicit:
		// No config file; environment and flags only.
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	if cfg.YouTube.APIKey == "" {
		cfg.YouTube.APIKey = os.Getenv("YOUTUBE_API_KEY")
	}
	if cfg.YouTube.ClientID == "" {
		cfg.YouTube.ClientID = os.Getenv("GOOGLE_CLIENT_ID")
	}
	if cfg.YouTube.ClientSecret == "" {
		cfg.YouTube.ClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	}
	if cfg.AI.GeminiAPIKey == "" {
		cfg.AI.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = os.Getenv("GEMINI_MODEL")
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.YouTube.TokenFile == "" {
		c.YouTube.TokenFile = "youtube_token.json"
	}
	if c.YouTube.CaptionLanguage == "" {
		c.YouTube.CaptionLanguage = "en"
	}
	if c.YouTube.RequestsPerSecond <= 0 {
		c.YouTube.RequestsPerSecond = 2
	}
	if c.AI.Model == "" {
		c.AI.Model = "gemini-2.5-flash"
	}
	if c.AI.MaxOutputTokens <= 0 {
		c.AI.MaxOutputTokens = 4096
	}
	if c.Pipeline.OutputDir == "" {
		c.Pipeline.OutputDir = "output"
	}
	if c.Pipeline.MinDurationSeconds == nil {
		shorts := DefaultMinDurationSeconds
		c.Pipeline.MinDurationSeconds = &shorts
	}
	if c.Pipeline.StaleStreak <= 0 {
		c.Pipeline.StaleStreak = 3
	}
	if c.Pipeline.BatchSize <= 0 {
		c.Pipeline.BatchSize = 20
	}
	if c.Pipeline.Concurrency <= 0 {
		c.Pipeline.Concurrency = 5
	}
	if c.Pipeline.Timestamps == nil {
		on := true
		c.Pipeline.Timestamps = &on
	}
	if c.Pipeline.MaxAttempts <= 0 {
		c.Pipeline.MaxAttempts = 5
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "auto"
	}
}

func (c *Config) validate() error {
	if c.Pipeline.After != "" {
		if _, err := c.AfterDate(); err != nil {
			return err
		}
	}
	if c.MinDuration() < 0 {
		return fmt.Errorf("pipeline.min_duration_seconds must not be negative")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "auto", "text", "json":
	default:
		return fmt.Errorf("logging.format must be auto, text or json (got %q)", c.Logging.Format)
	}
	return nil
}

// AfterDate parses the publish-date cutoff. The zero time means no cutoff.
func (c *Config) AfterDate() (time.Time, error) {
	if c.Pipeline.After == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", c.Pipeline.After)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid after date %q (want YYYY-MM-DD): %w", c.Pipeline.After, err)
	}
	return t, nil
}

// MinDuration is the shortest video length the lister keeps, in seconds. Zero
// keeps every video.
func (c *Config) MinDuration() int {
	if c.Pipeline.MinDurationSeconds == nil {
		return DefaultMinDurationSeconds
	}
	return *c.Pipeline.MinDurationSeconds
}

// TimestampsEnabled reports whether caption transcripts keep inline time markers.
func (c *Config) TimestampsEnabled() bool {
	return c.Pipeline.Timestamps == nil || *c.Pipeline.Timestamps
}

// RequireGemini fails fast when a stage needs the language model.
func (c *Config) RequireGemini() error {
	if c.AI.GeminiAPIKey == "" {
		return fmt.Errorf("%w: Gemini API key is required (set GEMINI_API_KEY, --gemini-key or ai.gemini_api_key)", ErrMissingCredential)
	}
	return nil
}

// RequireYouTube fails fast when neither an API key nor OAuth client credentials are set.
func (c *Config) RequireYouTube() error {
	if c.YouTube.APIKey != "" {
		return nil
	}
	if c.YouTube.ClientID == "" || c.YouTube.ClientSecret == "" {
		return fmt.Errorf("%w: YouTube API key or OAuth client is required (set YOUTUBE_API_KEY, --youtube-key, or GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET)", ErrMissingCredential)
	}
	return nil
}
