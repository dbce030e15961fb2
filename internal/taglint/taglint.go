// Package taglint applies the lifecycle and naming rules to tags: paused
// tags, Universal Analytics leftovers, naming convention violations and
// tags that have no firing trigger.
package taglint

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"evalgo.org/tagscope/internal/classify"
	"evalgo.org/tagscope/internal/config"
	"evalgo.org/tagscope/models"
)

// Naming rule identifiers, in evaluation order.
const (
	RuleLeadingChar  = "must start with a letter or underscore"
	RuleNoWhitespace = "must not contain whitespace"
	RuleLength       = "length"
	RuleCase         = "must be snake_case or camelCase"
	RuleAllowedChars = "must only contain letters, digits and underscores"
)

// Summary counts the lifecycle findings.
type Summary struct {
	Total      int `json:"total"`
	Paused     int `json:"paused"`
	UAObsolete int `json:"ua_obsolete"`
	Naming     int `json:"naming"`
	NoTrigger  int `json:"no_trigger"`
	Marketing  int `json:"marketing"`
	Analytics  int `json:"analytics"`
	CustomHTML int `json:"custom_html"`
}

// Result is the outcome of one lint pass.
type Result struct {
	Summary Summary        `json:"summary"`
	Issues  []models.Issue `json:"issues"`
}

// Linter evaluates tags against the configured naming convention.
type Linter struct {
	minLen, maxLen int
	snake, camel   *regexp.Regexp
}

// New builds a linter. Patterns that fail to compile fall back to the
// built-in convention.
func New(cfg config.NamingConfig) *Linter {
	def := config.DefaultAnalysisConfig().Naming
	l := &Linter{minLen: cfg.MinLength, maxLen: cfg.MaxLength}
	if l.minLen <= 0 {
		l.minLen = def.MinLength
	}
	if l.maxLen < l.minLen {
		l.maxLen = def.MaxLength
	}
	l.snake = compileOr(cfg.SnakePattern, def.SnakePattern)
	l.camel = compileOr(cfg.CamelPattern, def.CamelPattern)
	return l
}

func compileOr(pattern, fallback string) *regexp.Regexp {
	if re, err := regexp.Compile(pattern); err == nil && pattern != "" {
		return re
	}
	return regexp.MustCompile(fallback)
}

// Analyze lints every tag of the container.
func (l *Linter) Analyze(c *models.Container) Result {
	res := Result{Issues: []models.Issue{}}
	if c == nil {
		return res
	}
	res.Summary.Total = len(c.Tags)

	for i := range c.Tags {
		t := &c.Tags[i]
		id := t.EntityID(i)
		issue := func(category string, sev models.Severity, reason, suggestion string) {
			res.Issues = append(res.Issues, models.Issue{
				EntityKind: models.KindTag,
				EntityID:   id,
				EntityName: t.Name,
				Categories: []string{category},
				Severity:   sev,
				Reason:     reason,
				Suggestion: suggestion,
			})
		}

		switch classify.Of(t) {
		case classify.Marketing:
			res.Summary.Marketing++
		case classify.Analytics:
			res.Summary.Analytics++
		}
		if t.IsCustomHTML() {
			res.Summary.CustomHTML++
		}

		if t.Paused {
			res.Summary.Paused++
			issue(models.CategoryPaused, models.SeverityMinor,
				"tag is paused",
				"Delete the tag if it is no longer needed, or unpause it.")
		}

		if classify.IsUniversalAnalytics(t) {
			res.Summary.UAObsolete++
			issue(models.CategoryUAObsolete, models.SeverityMajor,
				"tag targets Universal Analytics, which stopped processing data",
				"Migrate the measurement to a GA4 tag and remove this tag.")
		}

		if failed := l.NameViolations(t.Name); len(failed) > 0 {
			res.Summary.Naming++
			issue(models.CategoryNaming, models.SeverityMinor,
				fmt.Sprintf("name %q breaks naming rules: %s", t.Name, strings.Join(failed, "; ")),
				"Rename the tag using snake_case or camelCase, e.g. ga4_event_purchase.")
		}

		if !hasTrigger(t.FiringTriggerIDs) {
			res.Summary.NoTrigger++
			issue(models.CategoryNoTrigger, models.SeverityMajor,
				"tag has no firing trigger and never runs",
				"Attach a firing trigger or delete the tag.")
		}
	}
	return res
}

// NameViolations returns the naming rules a name breaks, in evaluation
// order. A clean name yields nil.
func (l *Linter) NameViolations(name string) []string {
	var failed []string

	first, _ := utf8.DecodeRuneInString(name)
	if name == "" || !(first == '_' || unicode.IsLetter(first)) {
		failed = append(failed, RuleLeadingChar)
	}
	if strings.IndexFunc(name, unicode.IsSpace) >= 0 {
		failed = append(failed, RuleNoWhitespace)
	}
	if n := utf8.RuneCountInString(name); n < l.minLen || n > l.maxLen {
		failed = append(failed, fmt.Sprintf("%s must be between %d and %d characters", RuleLength, l.minLen, l.maxLen))
	}
	if !l.snake.MatchString(name) && !l.camel.MatchString(name) {
		failed = append(failed, RuleCase)
	}
	if strings.IndexFunc(name, disallowed) >= 0 {
		failed = append(failed, RuleAllowedChars)
	}
	return failed
}

func disallowed(r rune) bool {
	return !(r == '_' || (r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r)))) && !unicode.IsSpace(r)
}

func hasTrigger(ids []string) bool {
	for _, id := range ids {
		if strings.TrimSpace(id) != "" {
			return true
		}
	}
	return false
}
