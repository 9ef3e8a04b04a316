package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pitchsheet/pkg/models"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		configFileEnv, "DATABASE_URL",
		"PITCHSHEET_SERVER_ADDR", "PITCHSHEET_SEC_USER_AGENT", "PITCHSHEET_SEC_MIN_INTERVAL",
		"PITCHSHEET_DATABASE_URL", "PITCHSHEET_LOGGING_LEVEL", "PITCHSHEET_DEFAULTS_NUM_PERIODS",
		"PITCHSHEET_SERVER_ALLOWED_ORIGINS",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pitchsheet.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, 150*time.Millisecond, cfg.SEC.MinInterval)
	assert.Equal(t, models.PeriodAnnual, cfg.Defaults.PeriodType)
	assert.Equal(t, 5, cfg.Defaults.NumPeriods)
	assert.Equal(t, 20, cfg.Defaults.MaxPeriods)
	assert.Empty(t, cfg.Database.URL)
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
server:
  addr: ":9090"
  allowed_origins: ["https://app.example.com"]
sec:
  user_agent: "File Agent (file@example.com)"
  min_interval: 250ms
database:
  url: "postgres://file"
`)
	t.Setenv(configFileEnv, path)
	t.Setenv("PITCHSHEET_SEC_USER_AGENT", "Env Agent (env@example.com)")
	t.Setenv("PITCHSHEET_DEFAULTS_NUM_PERIODS", "8")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 250*time.Millisecond, cfg.SEC.MinInterval)
	assert.Equal(t, "postgres://file", cfg.Database.URL)
	assert.Equal(t, "Env Agent (env@example.com)", cfg.SEC.UserAgent, "env wins over file")
	assert.Equal(t, 8, cfg.Defaults.NumPeriods)
	// untouched by file and env
	assert.Equal(t, 30*time.Second, cfg.SEC.Timeout)
}

func TestLoadDatabaseURLFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://fallback")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://fallback", cfg.Database.URL)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	clearEnv(t)
	t.Setenv(configFileEnv, filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsInvalidEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PITCHSHEET_LOGGING_LEVEL", "loud")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.level")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"empty user agent", func(c *Config) { c.SEC.UserAgent = "  " }, false},
		{"zero interval", func(c *Config) { c.SEC.MinInterval = 0 }, false},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }, false},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, false},
		{"bad period type", func(c *Config) { c.Defaults.PeriodType = "8-K" }, false},
		{"num periods above max", func(c *Config) { c.Defaults.NumPeriods = 21 }, false},
		{"warn level", func(c *Config) { c.Logging.Level = "WARN" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := LoggingConfig{Level: "warn", Format: "text"}.NewLogger(&buf)

	logger.Info("hidden")
	logger.Warn("shown", "component", "test")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "component=test")
}
