// Package analysis runs every container analyzer and assembles the
// scored report.
//
// The engine is stateless: each call to Analyze takes the container as an
// argument and reads it without modification. Analyzers may run
// concurrently; a panicking analyzer is recovered, reported as
// unavailable, and excluded from the score.
package analysis

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"evalgo.org/tagscope/internal/config"
	"evalgo.org/tagscope/internal/consent"
	"evalgo.org/tagscope/internal/htmlsec"
	"evalgo.org/tagscope/internal/issueindex"
	"evalgo.org/tagscope/internal/messages"
	"evalgo.org/tagscope/internal/scoring"
	"evalgo.org/tagscope/internal/taglint"
	"evalgo.org/tagscope/internal/triggers"
	"evalgo.org/tagscope/internal/usage"
	"evalgo.org/tagscope/internal/validation"
	"evalgo.org/tagscope/internal/variables"
	"evalgo.org/tagscope/models"
)

// Analyzer names used in logs and in Report.Unavailable.
const (
	AnalyzerUsage     = "usage"
	AnalyzerTags      = "tags"
	AnalyzerConsent   = "consent"
	AnalyzerTriggers  = "triggers"
	AnalyzerVariables = "variables"
	AnalyzerHTML      = "html"
)

// reportNamespace scopes the name-based report IDs.
var reportNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://evalgo.org/tagscope/report"))

// Engine evaluates containers with one set of rule parameters.
type Engine struct {
	cfg    config.AnalysisConfig
	logger *slog.Logger

	linter    *taglint.Linter
	consent   *consent.Analyzer
	triggers  *triggers.Analyzer
	variables *variables.Analyzer
	html      *htmlsec.Analyzer
	validator *validation.Validator
	catalog   messages.Catalog

	// hooks replaces analyzers in tests
	hooks map[string]func()
}

// New creates an engine. A nil logger discards log output.
func New(cfg config.AnalysisConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{
		cfg:       cfg,
		logger:    logger,
		linter:    taglint.New(cfg.Naming),
		consent:   consent.New(cfg.Consent),
		triggers:  triggers.New(cfg.Triggers),
		variables: variables.New(cfg.Variables),
		html:      htmlsec.New(cfg.HTML),
		validator: validation.New(),
		catalog:   messages.Default(),
	}
}

// results collects analyzer outputs. Each field is written by exactly one
// goroutine.
type results struct {
	graph     *usage.Graph
	dangling  []models.Issue
	tags      *taglint.Result
	consent   *consent.Result
	triggers  *triggers.Result
	variables *variables.Result
	html      *htmlsec.Result
	failed    map[string]error
}

// Analyze runs all analyzers on c and returns the report. It never fails;
// analyzer failures degrade the report instead.
func (e *Engine) Analyze(c *models.Container) *Report {
	if c == nil {
		c = &models.Container{}
	}

	r := &results{failed: make(map[string]error)}
	failures := make(map[string]*error, 6)
	for _, name := range []string{AnalyzerUsage, AnalyzerTags, AnalyzerConsent, AnalyzerTriggers, AnalyzerVariables, AnalyzerHTML} {
		failures[name] = new(error)
	}

	// the graph feeds the trigger and variable analyzers, so it runs first
	*failures[AnalyzerUsage] = e.guard(AnalyzerUsage, func() {
		r.graph = usage.Build(c, e.cfg.MaxDepth)
		r.dangling = usage.DanglingIssues(c, r.graph)
	})

	tasks := []struct {
		name string
		run  func()
	}{
		{AnalyzerTags, func() { res := e.linter.Analyze(c); r.tags = &res }},
		{AnalyzerConsent, func() { res := e.consent.Analyze(c); r.consent = &res }},
		{AnalyzerHTML, func() { res := e.html.Analyze(c); r.html = &res }},
		{AnalyzerTriggers, func() {
			if r.graph == nil {
				panic("usage graph unavailable")
			}
			res := e.triggers.Analyze(c, r.graph)
			r.triggers = &res
		}},
		{AnalyzerVariables, func() {
			if r.graph == nil {
				panic("usage graph unavailable")
			}
			res := e.variables.Analyze(c, r.graph)
			r.variables = &res
		}},
	}

	if e.cfg.Parallel {
		var g errgroup.Group
		for _, t := range tasks {
			t := t
			g.Go(func() error {
				*failures[t.name] = e.guard(t.name, t.run)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for _, t := range tasks {
			*failures[t.name] = e.guard(t.name, t.run)
		}
	}

	for name, err := range failures {
		if *err != nil {
			r.failed[name] = *err
		}
	}

	report := e.assemble(c, r)
	e.logger.Debug("analysis complete",
		"id", report.ID,
		"score", report.Quality.Total,
		"issues", len(report.Issues),
		"unavailable", report.Unavailable)
	return report
}

// guard runs fn, converting a panic into an error.
func (e *Engine) guard(name string, fn func()) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("analyzer %s panicked: %v", name, rec)
			e.logger.Warn("analyzer failed", "analyzer", name, "error", err)
		}
	}()
	if hook, ok := e.hooks[name]; ok {
		hook()
	}
	fn()
	return nil
}

// assemble merges analyzer outputs in a fixed order.
func (e *Engine) assemble(c *models.Container, r *results) *Report {
	report := &Report{
		ID:          e.reportID(c),
		Issues:      []models.Issue{},
		Warnings:    e.validator.Validate(c).Messages(),
		Unavailable: make([]string, 0, len(r.failed)),
	}
	if report.Warnings == nil {
		report.Warnings = []string{}
	}
	for name := range r.failed {
		report.Unavailable = append(report.Unavailable, name)
	}
	sort.Strings(report.Unavailable)

	ok := func(name string) bool { return r.failed[name] == nil }

	if ok(AnalyzerUsage) {
		report.Usage = r.graph
		report.Issues = append(report.Issues, r.dangling...)
	}

	var tagIssues []models.Issue
	if ok(AnalyzerUsage) {
		tagIssues = append(tagIssues, kindOnly(r.dangling, models.KindTag)...)
	}

	if ok(AnalyzerTags) {
		report.Tags.Summary = &r.tags.Summary
		report.Issues = append(report.Issues, r.tags.Issues...)
		tagIssues = append(tagIssues, r.tags.Issues...)
		report.Tags.Message = e.catalog.Message(messages.Tags, models.StatusOf(tagIssues))
	} else {
		report.Tags.Message = e.catalog.Message(messages.Tags, models.StatusUnavailable)
	}

	if ok(AnalyzerConsent) {
		report.ConsentMode.Coverage = &r.consent.Coverage
		report.ConsentMode.Message = e.catalog.Message(messages.Consent, r.consent.Status)
		report.Issues = append(report.Issues, r.consent.Issues...)
	} else {
		report.ConsentMode.Message = e.catalog.Message(messages.Consent, models.StatusUnavailable)
	}

	if ok(AnalyzerTriggers) {
		models.SortIssues(r.triggers.Issues)
		report.TriggerQuality.TriggerQuality = r.triggers
		report.TriggerQuality.Message = e.catalog.Message(messages.Triggers, r.triggers.Status)
		report.Issues = append(report.Issues, r.triggers.Issues...)
	} else {
		report.TriggerQuality.Message = e.catalog.Message(messages.Triggers, models.StatusUnavailable)
	}

	if ok(AnalyzerVariables) {
		models.SortIssues(r.variables.Issues)
		report.VariableQuality.VariableQuality = r.variables
		report.VariableQuality.Message = e.catalog.Message(messages.Variables, r.variables.Status)
		report.Issues = append(report.Issues, r.variables.Issues...)
	} else {
		report.VariableQuality.Message = e.catalog.Message(messages.Variables, models.StatusUnavailable)
	}

	if ok(AnalyzerHTML) {
		report.HTMLSecurity.HTMLSecurity = r.html
		report.HTMLSecurity.Message = e.catalog.Message(messages.HTML, r.html.Status)
		report.Issues = append(report.Issues, r.html.Issues...)
	} else {
		report.HTMLSecurity.Message = e.catalog.Message(messages.HTML, models.StatusUnavailable)
	}

	models.SortIssues(report.Issues)
	report.Index = issueindex.Build(report.Issues)

	dims := []scoring.Dimension{
		{
			Label:     scoring.LabelTags,
			Kind:      models.KindTag,
			Total:     len(c.Tags),
			Available: ok(AnalyzerUsage) && ok(AnalyzerTags) && ok(AnalyzerConsent) && ok(AnalyzerHTML),
		},
		{
			Label:     scoring.LabelTriggers,
			Kind:      models.KindTrigger,
			Total:     len(c.Triggers),
			Available: ok(AnalyzerUsage) && ok(AnalyzerTriggers),
		},
		{
			Label:     scoring.LabelVariables,
			Kind:      models.KindVariable,
			Total:     len(c.Variables),
			Available: ok(AnalyzerUsage) && ok(AnalyzerVariables),
		},
	}
	report.Quality.QualityScore = scoring.Aggregate(e.cfg.Weights, dims, report.Issues)
	report.Quality.Message = e.catalog.Message(messages.Quality, report.Quality.Status)
	return report
}

// reportID hashes the canonical JSON of the container and the rule
// parameters into a UUIDv5. Execution settings are not part of the hash.
func (e *Engine) reportID(c *models.Container) string {
	rules := e.cfg
	rules.Parallel = false
	data, err := json.Marshal(struct {
		Container *models.Container     `json:"container"`
		Config    config.AnalysisConfig `json:"config"`
	}{c, rules})
	if err != nil {
		// NaN weights do not encode
		data = fmt.Appendf(nil, "%v|%v", *c, rules)
	}
	return uuid.NewSHA1(reportNamespace, data).String()
}

func kindOnly(issues []models.Issue, kind models.EntityKind) []models.Issue {
	var out []models.Issue
	for _, i := range issues {
		if i.EntityKind == kind {
			out = append(out, i)
		}
	}
	return out
}
