package config

import (
	"fmt"
	"regexp"
	"sort"

	"evalgo.org/tagscope/models"
)

// AnalysisConfig holds the tunable rule parameters of the analysis engine.
type AnalysisConfig struct {
	// Parallel runs the analyzers concurrently
	Parallel bool `mapstructure:"parallel" yaml:"parallel"`

	// MaxDepth bounds the recursion into nested parameters
	MaxDepth int `mapstructure:"max_depth" yaml:"max_depth" validate:"min=1,max=10000"`

	// Weights are the score weights of the tag, trigger and variable dimensions
	Weights WeightsConfig `mapstructure:"weights" yaml:"weights"`

	Naming    NamingConfig    `mapstructure:"naming" yaml:"naming"`
	Consent   ConsentConfig   `mapstructure:"consent" yaml:"consent"`
	Triggers  TriggersConfig  `mapstructure:"triggers" yaml:"triggers"`
	Variables VariablesConfig `mapstructure:"variables" yaml:"variables"`
	HTML      HTMLConfig      `mapstructure:"html" yaml:"html"`
}

// WeightsConfig contains the relative weight of each scored dimension.
type WeightsConfig struct {
	Tags      float64 `mapstructure:"tags" yaml:"tags" validate:"gte=0"`
	Triggers  float64 `mapstructure:"triggers" yaml:"triggers" validate:"gte=0"`
	Variables float64 `mapstructure:"variables" yaml:"variables" validate:"gte=0"`
}

// NamingConfig contains the tag naming convention.
type NamingConfig struct {
	MinLength int `mapstructure:"min_length" yaml:"min_length" validate:"min=1"`
	MaxLength int `mapstructure:"max_length" yaml:"max_length" validate:"gtefield=MinLength"`

	// SnakePattern and CamelPattern are the accepted case styles
	SnakePattern string `mapstructure:"snake_pattern" yaml:"snake_pattern" validate:"required"`
	CamelPattern string `mapstructure:"camel_pattern" yaml:"camel_pattern" validate:"required"`
}

// ConsentConfig contains the Consent Mode requirements for marketing tags.
type ConsentConfig struct {
	RequiredCategories []string `mapstructure:"required_categories" yaml:"required_categories" validate:"min=1,dive,required"`
}

// TriggersConfig contains trigger rule parameters.
type TriggersConfig struct {
	// SPAPenalty is the spa sub-score when no HISTORY_CHANGE trigger exists
	SPAPenalty float64 `mapstructure:"spa_penalty" yaml:"spa_penalty" validate:"gte=0,lte=1"`
}

// VariablesConfig contains variable rule parameters.
type VariablesConfig struct {
	// Severity maps the configurable categories to minor, major or critical
	Severity map[string]string `mapstructure:"severity" yaml:"severity"`
}

// HTMLConfig contains Custom-HTML rule parameters.
type HTMLConfig struct {
	// TimerThresholdMS is the smallest acceptable timer interval
	TimerThresholdMS int `mapstructure:"timer_threshold_ms" yaml:"timer_threshold_ms" validate:"gte=0"`

	// StatementThreshold is the size above which a top-level function needs try/catch
	StatementThreshold int `mapstructure:"statement_threshold" yaml:"statement_threshold" validate:"gte=1"`
}

// Variable categories whose severity is configurable, with their defaults.
var defaultVariableSeverity = map[string]string{
	models.CategoryDLVMissingFallback: string(models.SeverityMajor),
	models.CategoryRegexMalformed:     string(models.SeverityMajor),
	models.CategoryCSSFragileSelector: string(models.SeverityMinor),
}

// DefaultAnalysisConfig returns the built-in rule parameters.
func DefaultAnalysisConfig() AnalysisConfig {
	sev := make(map[string]string, len(defaultVariableSeverity))
	for k, v := range defaultVariableSeverity {
		sev[k] = v
	}
	return AnalysisConfig{
		Parallel: true,
		MaxDepth: 50,
		Weights: WeightsConfig{
			Tags:      40,
			Triggers:  30,
			Variables: 30,
		},
		Naming: NamingConfig{
			MinLength:    3,
			MaxLength:    50,
			SnakePattern: `^_?[a-z][a-z0-9]*(_[a-z0-9]+)*$`,
			CamelPattern: `^[a-z][a-zA-Z0-9]*$`,
		},
		Consent: ConsentConfig{
			RequiredCategories: []string{"ad_storage", "analytics_storage"},
		},
		Triggers: TriggersConfig{
			SPAPenalty: 0.5,
		},
		Variables: VariablesConfig{
			Severity: sev,
		},
		HTML: HTMLConfig{
			TimerThresholdMS:   250,
			StatementThreshold: 10,
		},
	}
}

// Validate checks the cross-field rules that struct tags cannot express.
func (a AnalysisConfig) Validate() error {
	if a.Weights.Tags+a.Weights.Triggers+a.Weights.Variables <= 0 {
		return fmt.Errorf("analysis weights must sum to a positive value")
	}
	if _, err := regexp.Compile(a.Naming.SnakePattern); err != nil {
		return fmt.Errorf("invalid naming snake_pattern: %w", err)
	}
	if _, err := regexp.Compile(a.Naming.CamelPattern); err != nil {
		return fmt.Errorf("invalid naming camel_pattern: %w", err)
	}

	keys := make([]string, 0, len(a.Variables.Severity))
	for k := range a.Variables.Severity {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, ok := defaultVariableSeverity[k]; !ok {
			return fmt.Errorf("analysis.variables.severity: unknown category %q", k)
		}
		if _, err := models.ParseSeverity(a.Variables.Severity[k]); err != nil {
			return fmt.Errorf("analysis.variables.severity.%s: %w", k, err)
		}
	}
	return nil
}

// SeverityFor returns the configured severity of a variable category.
func (v VariablesConfig) SeverityFor(category string) models.Severity {
	fallback := models.Severity(defaultVariableSeverity[category])
	if !fallback.Valid() {
		fallback = models.SeverityMinor
	}
	return severityOf(v.Severity, category, fallback)
}
