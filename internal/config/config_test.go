package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"evalgo.org/tagscope/models"
)

// TestLoadDefaults tests that default configuration values are loaded correctly.
func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("nonexistent.yaml")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "10M", cfg.Server.BodyLimit)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "stderr", cfg.Logging.Output)

	assert.Equal(t, 100, cfg.Security.RateLimit)
	assert.Equal(t, []string{"*"}, cfg.Security.AllowedOrigins)

	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 256, cfg.Cache.Size)
	assert.False(t, cfg.Audit.Enabled)
	assert.Equal(t, 300*time.Millisecond, cfg.Watch.Debounce)

	a := cfg.Analysis
	assert.True(t, a.Parallel)
	assert.Equal(t, 50, a.MaxDepth)
	assert.Equal(t, 40.0, a.Weights.Tags)
	assert.Equal(t, 30.0, a.Weights.Triggers)
	assert.Equal(t, 30.0, a.Weights.Variables)
	assert.Equal(t, 3, a.Naming.MinLength)
	assert.Equal(t, 50, a.Naming.MaxLength)
	assert.Equal(t, []string{"ad_storage", "analytics_storage"}, a.Consent.RequiredCategories)
	assert.Equal(t, 0.5, a.Triggers.SPAPenalty)
	assert.Equal(t, 250, a.HTML.TimerThresholdMS)
	assert.Equal(t, 10, a.HTML.StatementThreshold)
	assert.Equal(t, models.SeverityMajor, a.Variables.SeverityFor(models.CategoryDLVMissingFallback))
	assert.Equal(t, models.SeverityMinor, a.Variables.SeverityFor(models.CategoryCSSFragileSelector))
}

// TestLoadFromFile tests that a YAML file overrides defaults.
func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9090
analysis:
  parallel: false
  weights:
    tags: 50
    triggers: 25
    variables: 25
  variables:
    severity:
      css_fragile_selectors: major
  html:
    timer_threshold_ms: 500
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.False(t, cfg.Analysis.Parallel)
	assert.Equal(t, 50.0, cfg.Analysis.Weights.Tags)
	assert.Equal(t, 500, cfg.Analysis.HTML.TimerThresholdMS)
	assert.Equal(t, models.SeverityMajor, cfg.Analysis.Variables.SeverityFor(models.CategoryCSSFragileSelector))
	// untouched keys keep their defaults
	assert.Equal(t, 10, cfg.Analysis.HTML.StatementThreshold)
}

// TestValidation tests the configuration validation logic.
func TestValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{
			name:   "valid configuration",
			mutate: func(c *Config) {},
		},
		{
			name:   "invalid port - too low",
			mutate: func(c *Config) { c.Server.Port = 0 },
			errMsg: "Port",
		},
		{
			name:   "invalid port - too high",
			mutate: func(c *Config) { c.Server.Port = 70000 },
			errMsg: "Port",
		},
		{
			name:   "unknown log level",
			mutate: func(c *Config) { c.Logging.Level = "verbose" },
			errMsg: "Level",
		},
		{
			name: "zero weights",
			mutate: func(c *Config) {
				c.Analysis.Weights = WeightsConfig{}
			},
			errMsg: "weights must sum",
		},
		{
			name:   "negative weight",
			mutate: func(c *Config) { c.Analysis.Weights.Tags = -1 },
			errMsg: "Tags",
		},
		{
			name:   "bad severity",
			mutate: func(c *Config) { c.Analysis.Variables.Severity["regex_malformed"] = "urgent" },
			errMsg: "invalid severity",
		},
		{
			name:   "unknown severity category",
			mutate: func(c *Config) { c.Analysis.Variables.Severity["unused"] = "major" },
			errMsg: "unknown category",
		},
		{
			name:   "bad naming pattern",
			mutate: func(c *Config) { c.Analysis.Naming.SnakePattern = "([a-z" },
			errMsg: "snake_pattern",
		},
		{
			name:   "no consent categories",
			mutate: func(c *Config) { c.Analysis.Consent.RequiredCategories = nil },
			errMsg: "RequiredCategories",
		},
		{
			name: "audit without path",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.Path = ""
			},
			errMsg: "audit path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := validate(c)
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

// TestEnvironmentVariableOverride tests that environment variables override config values.
func TestEnvironmentVariableOverride(t *testing.T) {
	t.Setenv("TAGSCOPE_SERVER_PORT", "9999")
	t.Setenv("TAGSCOPE_SERVER_HOST", "127.0.0.1")
	t.Setenv("TAGSCOPE_ANALYSIS_PARALLEL", "false")
	t.Setenv("TAGSCOPE_ANALYSIS_HTML_TIMER_THRESHOLD_MS", "1000")

	cfg, err := Load("nonexistent.yaml")
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.False(t, cfg.Analysis.Parallel)
	assert.Equal(t, 1000, cfg.Analysis.HTML.TimerThresholdMS)
}

// TestGet tests the global config getter.
func TestGet(t *testing.T) {
	_, err := Load("nonexistent.yaml")
	require.NoError(t, err)

	retrieved := Get()
	require.NotNil(t, retrieved)
	assert.Equal(t, 8080, retrieved.Server.Port)
}

func TestDefaultAnalysisConfigIsIndependent(t *testing.T) {
	a := DefaultAnalysisConfig()
	a.Variables.Severity[models.CategoryRegexMalformed] = "minor"

	b := DefaultAnalysisConfig()
	assert.Equal(t, "major", b.Variables.Severity[models.CategoryRegexMalformed])
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := LoggingConfig{Level: "warn", Format: "json"}.NewLoggerTo(&buf)

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"k":"v"`)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, ParseLevel(in))
		})
	}
}

func TestExampleMatchesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, Example(), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestMarshalYAMLLoadsBack(t *testing.T) {
	want := Default()
	want.Server.Port = 9090
	want.Server.ReadTimeout = 5 * time.Second
	want.Watch.Debounce = time.Second

	data, err := yaml.Marshal(want)
	require.NoError(t, err)
	assert.Contains(t, string(data), "read_timeout: 5s")
	assert.Contains(t, string(data), "debounce: 1s")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
