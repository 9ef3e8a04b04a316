// Package config loads pitchsheet settings from defaults, an optional YAML
// file and PITCHSHEET_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"pitchsheet/pkg/models"
)

const (
	envPrefix         = "PITCHSHEET"
	configFileEnv     = "PITCHSHEET_CONFIG_FILE"
	DefaultConfigFile = "config/pitchsheet.yaml"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	SEC      SECConfig      `yaml:"sec" envconfig:"SEC"`
	Paths    PathsConfig    `yaml:"paths" envconfig:"PATHS"`
	Database DatabaseConfig `yaml:"database" envconfig:"DATABASE"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Defaults RunDefaults    `yaml:"defaults" envconfig:"DEFAULTS"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Addr            string        `yaml:"addr" split_words:"true"`
	ReadTimeout     time.Duration `yaml:"read_timeout" split_words:"true"`
	WriteTimeout    time.Duration `yaml:"write_timeout" split_words:"true"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" split_words:"true"`
	AllowedOrigins  []string      `yaml:"allowed_origins" split_words:"true"`
}

// SECConfig configures the EDGAR client.
type SECConfig struct {
	UserAgent   string        `yaml:"user_agent" split_words:"true"`
	BaseURL     string        `yaml:"base_url" split_words:"true"`
	TickersURL  string        `yaml:"tickers_url" split_words:"true"`
	MinInterval time.Duration `yaml:"min_interval" split_words:"true"`
	Timeout     time.Duration `yaml:"timeout" split_words:"true"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	CacheDir     string `yaml:"cache_dir" split_words:"true"`
	ArtifactsDir string `yaml:"artifacts_dir" split_words:"true"`
}

// DatabaseConfig selects the run store. An empty URL keeps runs in memory.
type DatabaseConfig struct {
	URL string `yaml:"url" split_words:"true"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" split_words:"true"`
	Format string `yaml:"format" split_words:"true"`
}

// RunDefaults fill in omitted run request fields.
type RunDefaults struct {
	PeriodType models.PeriodType `yaml:"period_type" split_words:"true"`
	NumPeriods int               `yaml:"num_periods" split_words:"true"`
	MaxPeriods int               `yaml:"max_periods" split_words:"true"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8000",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			AllowedOrigins:  []string{"http://localhost:5173", "http://localhost:3000"},
		},
		SEC: SECConfig{
			UserAgent:   "PitchSheet (admin@example.com)",
			BaseURL:     "https://data.sec.gov",
			TickersURL:  "https://www.sec.gov/files/company_tickers.json",
			MinInterval: 150 * time.Millisecond,
			Timeout:     30 * time.Second,
		},
		Paths: PathsConfig{
			CacheDir:     "cache",
			ArtifactsDir: "artifacts",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Defaults: RunDefaults{
			PeriodType: models.PeriodAnnual,
			NumPeriods: 5,
			MaxPeriods: 20,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file (if present),
// then environment variables. A .env file in the working directory is
// loaded into the environment first.
func Load() (*Config, error) {
	// Missing .env is fine
	_ = godotenv.Load()

	cfg := Default()

	path := os.Getenv(configFileEnv)
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	if err := loadFromFile(path, &cfg); err != nil {
		if !errors.Is(err, os.ErrNotExist) || explicit {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Fields without a matching env var keep their current value.
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}
	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv("DATABASE_URL")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// loadFromFile overlays the YAML file at path onto cfg.
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// Validate checks settings the server cannot start without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.SEC.UserAgent) == "" {
		return errors.New("sec.user_agent is required")
	}
	if c.SEC.MinInterval <= 0 {
		return fmt.Errorf("sec.min_interval must be positive, got %s", c.SEC.MinInterval)
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format)
	}
	if !c.Defaults.PeriodType.Valid() {
		return fmt.Errorf("defaults.period_type must be 10-K or 10-Q, got %q", c.Defaults.PeriodType)
	}
	if c.Defaults.MaxPeriods < 1 {
		return fmt.Errorf("defaults.max_periods must be at least 1, got %d", c.Defaults.MaxPeriods)
	}
	if c.Defaults.NumPeriods < 1 || c.Defaults.NumPeriods > c.Defaults.MaxPeriods {
		return fmt.Errorf("defaults.num_periods must be between 1 and %d, got %d", c.Defaults.MaxPeriods, c.Defaults.NumPeriods)
	}
	return nil
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("logging.level %q is not one of debug, info, warn, error", level)
}

// NewLogger builds the process logger described by the logging section.
func (c LoggingConfig) NewLogger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.Level)
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
