// Package config provides configuration management for Tagscope.
//
// This package handles loading configuration from multiple sources:
//   - YAML configuration files
//   - Environment variables (with TAGSCOPE_ prefix)
//   - .env files
//   - Default values
//
// # Configuration Sources Priority
//
// Configuration is loaded in the following order (later sources override earlier ones):
//  1. Default values (hardcoded)
//  2. Configuration files (./config.yaml, ./configs/config.yaml, ~/.tagscope/config.yaml, /etc/tagscope/config.yaml)
//  3. .env files
//  4. Environment variables (TAGSCOPE_ prefix)
//
// # Usage Example
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	engine := analysis.New(cfg.Analysis, logger)
//
// # Environment Variables
//
// Environment variables override all other configuration sources.
// Use TAGSCOPE_ prefix and underscores for nested keys:
//   - TAGSCOPE_SERVER_PORT=8095
//   - TAGSCOPE_ANALYSIS_PARALLEL=false
//   - TAGSCOPE_ANALYSIS_HTML_TIMER_THRESHOLD_MS=500
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"evalgo.org/tagscope/models"
)

// Config is the root configuration structure for Tagscope.
type Config struct {
	// Server contains HTTP server configuration
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Logging contains logging settings
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Security contains rate limiting and CORS settings
	Security SecurityConfig `mapstructure:"security" yaml:"security"`

	// Cache contains the report cache settings
	Cache CacheConfig `mapstructure:"cache" yaml:"cache"`

	// Audit contains the analysis audit log settings
	Audit AuditConfig `mapstructure:"audit" yaml:"audit"`

	// Watch contains file watching settings
	Watch WatchConfig `mapstructure:"watch" yaml:"watch"`

	// Analysis contains the rule parameters of the analysis engine
	Analysis AnalysisConfig `mapstructure:"analysis" yaml:"analysis"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// Host is the server bind address (default: 0.0.0.0)
	Host string `mapstructure:"host" yaml:"host"`

	// Port is the server listen port (default: 8080)
	Port int `mapstructure:"port" yaml:"port" validate:"min=1,max=65535"`

	// ReadTimeout is the maximum duration for reading requests
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing responses
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`

	// ShutdownTimeout is the maximum duration for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	// BodyLimit caps request bodies (echo size notation, e.g. 10M)
	BodyLimit string `mapstructure:"body_limit" yaml:"body_limit"`

	// Debug enables echo debug mode
	Debug bool `mapstructure:"debug" yaml:"debug"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the log level (debug, info, warn, error)
	Level string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`

	// Format is the log format (json, text)
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=json text"`

	// Output is the log output destination (stdout, stderr)
	Output string `mapstructure:"output" yaml:"output" validate:"oneof=stdout stderr"`
}

// SecurityConfig contains security and rate limiting settings.
type SecurityConfig struct {
	// RateLimit is the maximum requests per second per client (0 disables)
	RateLimit int `mapstructure:"rate_limit" yaml:"rate_limit" validate:"gte=0"`

	// AllowedOrigins are the CORS allowed origins
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// CacheConfig controls the in-memory report cache.
type CacheConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Size is the maximum number of reports kept
	Size int `mapstructure:"size" yaml:"size" validate:"gte=0"`
}

// AuditConfig controls the JSONL audit log of analysis runs.
type AuditConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Path is the directory receiving the audit files
	Path string `mapstructure:"path" yaml:"path"`
}

// WatchConfig controls file watching.
type WatchConfig struct {
	// Debounce coalesces bursts of file events into one analysis run
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

var cfg *Config

// Load reads configuration from a file and environment variables.
// If cfgFile is empty, it searches for config.yaml in standard locations.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (TAGSCOPE_ prefix)
//  2. .env file
//  3. Configuration file
//  4. Default values
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.tagscope")
		v.AddConfigPath("/etc/tagscope")
	}

	if err := v.ReadInConfig(); err != nil {
		if cfgFile != "" {
			// a missing explicit file falls back to defaults
			if !isFileNotFoundError(err) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		} else {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.MergeInConfig() // Ignore error if .env file doesn't exist

	v.SetEnvPrefix("TAGSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(c); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg = c
	return c, nil
}

// Default returns the configuration obtained without any file or environment.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			BodyLimit:       "10M",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Security: SecurityConfig{
			RateLimit:      100,
			AllowedOrigins: []string{"*"},
		},
		Cache: CacheConfig{
			Enabled: true,
			Size:    256,
		},
		Audit: AuditConfig{
			Enabled: false,
			Path:    "./audit",
		},
		Watch: WatchConfig{
			Debounce: 300 * time.Millisecond,
		},
		Analysis: DefaultAnalysisConfig(),
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.body_limit", d.Server.BodyLimit)
	v.SetDefault("server.debug", d.Server.Debug)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output", d.Logging.Output)

	v.SetDefault("security.rate_limit", d.Security.RateLimit)
	v.SetDefault("security.allowed_origins", d.Security.AllowedOrigins)

	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.size", d.Cache.Size)

	v.SetDefault("audit.enabled", d.Audit.Enabled)
	v.SetDefault("audit.path", d.Audit.Path)

	v.SetDefault("watch.debounce", d.Watch.Debounce)

	a := d.Analysis
	v.SetDefault("analysis.parallel", a.Parallel)
	v.SetDefault("analysis.max_depth", a.MaxDepth)
	v.SetDefault("analysis.weights.tags", a.Weights.Tags)
	v.SetDefault("analysis.weights.triggers", a.Weights.Triggers)
	v.SetDefault("analysis.weights.variables", a.Weights.Variables)
	v.SetDefault("analysis.naming.min_length", a.Naming.MinLength)
	v.SetDefault("analysis.naming.max_length", a.Naming.MaxLength)
	v.SetDefault("analysis.naming.snake_pattern", a.Naming.SnakePattern)
	v.SetDefault("analysis.naming.camel_pattern", a.Naming.CamelPattern)
	v.SetDefault("analysis.consent.required_categories", a.Consent.RequiredCategories)
	v.SetDefault("analysis.triggers.spa_penalty", a.Triggers.SPAPenalty)
	v.SetDefault("analysis.variables.severity", a.Variables.Severity)
	v.SetDefault("analysis.html.timer_threshold_ms", a.HTML.TimerThresholdMS)
	v.SetDefault("analysis.html.statement_threshold", a.HTML.StatementThreshold)
}

var structValidator = validator.New()

func validate(c *Config) error {
	if err := structValidator.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s: failed %q rule (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return err
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Audit.Enabled && c.Audit.Path == "" {
		return fmt.Errorf("audit path is required when audit is enabled")
	}

	return c.Analysis.Validate()
}

// Get returns the configuration loaded by the last successful Load.
func Get() *Config {
	return cfg
}

// isFileNotFoundError checks if an error is a file not found error.
func isFileNotFoundError(err error) bool {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return errors.Is(pathErr, os.ErrNotExist)
	}
	return false
}

// severityOf is shared by analysis config helpers.
func severityOf(table map[string]string, category string, fallback models.Severity) models.Severity {
	if s, err := models.ParseSeverity(table[category]); err == nil {
		return s
	}
	return fallback
}
