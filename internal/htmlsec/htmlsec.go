// Package htmlsec statically checks the scripts of Custom-HTML tags for
// dangerous patterns and collects the third-party hosts they contact.
package htmlsec

import (
	"math"
	"sort"
	"strings"

	"evalgo.org/tagscope/internal/config"
	"evalgo.org/tagscope/internal/triggers"
	"evalgo.org/tagscope/models"
)

// Detail is the per-tag outcome of the HTML checks.
type Detail struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Severity models.Severity `json:"severity,omitempty"`
	Paused   bool            `json:"paused"`

	// Triggers lists the names of the firing triggers, for display
	Triggers []string `json:"triggers"`

	Findings     []Finding `json:"findings"`
	ThirdParties []string  `json:"third_parties"`

	// ParseError is set when the script could not be parsed as JavaScript
	ParseError string `json:"parse_error,omitempty"`
}

// Result is the HTML security summary of a container.
type Result struct {
	Checked  int      `json:"checked"`
	Critical int      `json:"critical"`
	Major    int      `json:"major"`
	Minor    int      `json:"minor"`
	Details  []Detail `json:"details"`

	ThirdParties      []string            `json:"third_parties"`
	ThirdPartyDomains map[string][]string `json:"third_party_domains"`

	Score  float64        `json:"score"`
	Issues []models.Issue `json:"-"`
	Status models.Status  `json:"-"`
}

// Analyzer evaluates Custom-HTML tags.
type Analyzer struct {
	timerThreshold     int
	statementThreshold int
}

// New creates an analyzer.
func New(cfg config.HTMLConfig) *Analyzer {
	def := config.DefaultAnalysisConfig().HTML
	a := &Analyzer{timerThreshold: cfg.TimerThresholdMS, statementThreshold: cfg.StatementThreshold}
	if a.timerThreshold < 0 {
		a.timerThreshold = def.TimerThresholdMS
	}
	if a.statementThreshold < 1 {
		a.statementThreshold = def.StatementThreshold
	}
	return a
}

// Analyze checks every Custom-HTML tag of the container.
func (a *Analyzer) Analyze(c *models.Container) Result {
	res := Result{
		Details:           []Detail{},
		ThirdParties:      []string{},
		ThirdPartyDomains: map[string][]string{},
		Issues:            []models.Issue{},
	}
	if c == nil {
		c = &models.Container{}
	}

	triggerByID := make(map[string]*models.Trigger, len(c.Triggers))
	for i := range c.Triggers {
		id := c.Triggers[i].EntityID(i)
		if _, dup := triggerByID[id]; !dup {
			triggerByID[id] = &c.Triggers[i]
		}
	}

	hosts := make(map[string]struct{})
	for i := range c.Tags {
		tag := &c.Tags[i]
		if !tag.IsCustomHTML() {
			continue
		}
		d := a.inspect(tag, tag.EntityID(i), triggerByID)
		res.Checked++
		switch d.Severity {
		case models.SeverityCritical:
			res.Critical++
		case models.SeverityMajor:
			res.Major++
		case models.SeverityMinor:
			res.Minor++
		}
		for _, h := range d.ThirdParties {
			hosts[h] = struct{}{}
		}
		for _, f := range d.Findings {
			res.Issues = append(res.Issues, models.Issue{
				EntityKind: models.KindTag,
				EntityID:   d.ID,
				EntityName: d.Name,
				Categories: []string{models.CategoryHTMLSecurity, f.Category},
				Severity:   f.Severity,
				Reason:     f.Reason,
				Suggestion: suggestions[f.Category],
			})
		}
		res.Details = append(res.Details, d)
	}

	for h := range hosts {
		res.ThirdParties = append(res.ThirdParties, h)
	}
	sort.Strings(res.ThirdParties)
	res.ThirdPartyDomains = groupByDomain(res.ThirdParties)

	if res.Checked == 0 {
		res.Score = 1
		res.Status = models.StatusInfo
		return res
	}
	weighted := float64(res.Critical) + 0.5*float64(res.Major) + 0.2*float64(res.Minor)
	res.Score = math.Max(0, 1-weighted/float64(res.Checked))
	res.Status = models.StatusOf(res.Issues)
	return res
}

func (a *Analyzer) inspect(tag *models.Tag, id string, triggerByID map[string]*models.Trigger) Detail {
	d := Detail{
		ID:           id,
		Name:         tag.Name,
		Paused:       tag.Paused,
		Triggers:     []string{},
		Findings:     []Finding{},
		ThirdParties: []string{},
	}

	atPageview := false
	for _, raw := range tag.FiringTriggerIDs {
		tid := strings.TrimSpace(raw)
		if t, ok := triggerByID[tid]; ok {
			d.Triggers = append(d.Triggers, t.Name)
			if triggers.TimingOf(t.Type) == triggers.TimingPageview {
				atPageview = true
			}
			continue
		}
		if tm := triggers.BuiltInTiming(tid); tm != triggers.TimingNone {
			d.Triggers = append(d.Triggers, tm.String())
			if tm == triggers.TimingPageview {
				atPageview = true
			}
		}
	}

	doc := parseDocument(tag.Script())
	d.ThirdParties = hostnames(doc)
	script := doc.Script()

	checks := []func() (Finding, bool){
		func() (Finding, bool) { return ruleEvalNetwork(script) },
		func() (Finding, bool) { return ruleXSS(script) },
		func() (Finding, bool) { return rulePIILeak(script) },
		func() (Finding, bool) { return ruleTimer(script, a.timerThreshold) },
		func() (Finding, bool) { return rulePostMessage(script) },
		func() (Finding, bool) { return ruleTiming(script, atPageview) },
	}
	for _, check := range checks {
		if f, ok := check(); ok {
			d.Findings = append(d.Findings, f)
		}
	}

	f, ok, err := ruleNoTryCatch(script, a.statementThreshold)
	if err != nil {
		d.ParseError = err.Error()
	} else if ok {
		d.Findings = append(d.Findings, f)
	}

	for _, f := range d.Findings {
		d.Severity = models.WorstSeverity(d.Severity, f.Severity)
	}
	return d
}

var suggestions = map[string]string{
	models.CategoryHTMLEvalNetwork: "Remove eval and new Function; load remote logic as a reviewed script instead.",
	models.CategoryHTMLXSS:         "Build DOM nodes with textContent, or sanitize the value before writing HTML.",
	models.CategoryHTMLPIILeak:     "Do not send personal data in URLs; hash it or drop it.",
	models.CategoryHTMLTimer:       "Raise the timer delay or react to events instead of polling.",
	models.CategoryHTMLPostMessage: "Pass the exact target origin to postMessage.",
	models.CategoryHTMLTiming:      "Fire the tag on a DOM Ready or Window Loaded trigger.",
	models.CategoryHTMLNoTryCatch:  "Wrap the function body in try/catch so errors do not break other tags.",
}
