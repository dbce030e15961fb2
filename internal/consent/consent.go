// Package consent checks that marketing tags are gated by Consent Mode.
//
// Every marketing-classified tag is inspected for a GTM consent settings
// block, or for parameters keyed by consent categories such as ad_storage.
// A tag without either is "missing"; a block set to NOT_SET or NOT_NEEDED
// is "not_configured"; a NEEDED block that omits required categories is
// "partial".
package consent

import (
	"fmt"
	"strings"

	"evalgo.org/tagscope/internal/classify"
	"evalgo.org/tagscope/internal/config"
	"evalgo.org/tagscope/models"
)

// Tag consent states.
const (
	StateOK            = "ok"
	StateMissing       = "missing"
	StateNotConfigured = "not_configured"
	StatePartial       = "partial"
)

const maxParamDepth = 50

// Detail is the consent finding for one marketing tag.
type Detail struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	State    string          `json:"state"`
	Severity models.Severity `json:"severity,omitempty"`
	Missing  []string        `json:"missing"`
	Paused   bool            `json:"paused"`
}

// Coverage aggregates the consent findings of a container.
type Coverage struct {
	Checked       int      `json:"checked"`
	OK            int      `json:"ok"`
	Missing       int      `json:"missing"`
	NotConfigured int      `json:"not_configured"`
	Partial       int      `json:"partial"`
	Details       []Detail `json:"details"`
}

// Result is the outcome of the consent analysis.
type Result struct {
	Coverage Coverage
	Status   models.Status
	Issues   []models.Issue
}

// Analyzer checks marketing tags against the required consent categories.
type Analyzer struct {
	required []string
}

// New creates an analyzer. An empty category list means the defaults.
func New(cfg config.ConsentConfig) *Analyzer {
	req := make([]string, 0, len(cfg.RequiredCategories))
	for _, c := range cfg.RequiredCategories {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			req = append(req, c)
		}
	}
	if len(req) == 0 {
		req = config.DefaultAnalysisConfig().Consent.RequiredCategories
	}
	return &Analyzer{required: req}
}

// Analyze inspects every marketing tag of the container.
func (a *Analyzer) Analyze(c *models.Container) Result {
	res := Result{
		Coverage: Coverage{Details: []Detail{}},
		Issues:   []models.Issue{},
	}
	if c != nil {
		for i := range c.Tags {
			t := &c.Tags[i]
			if !classify.IsMarketing(t) {
				continue
			}
			d := a.inspect(t, t.EntityID(i))
			res.Coverage.Checked++
			switch d.State {
			case StateOK:
				res.Coverage.OK++
			case StateMissing:
				res.Coverage.Missing++
			case StateNotConfigured:
				res.Coverage.NotConfigured++
			case StatePartial:
				res.Coverage.Partial++
			}
			res.Coverage.Details = append(res.Coverage.Details, d)
			if issue, ok := issueFor(d); ok {
				res.Issues = append(res.Issues, issue)
			}
		}
	}
	res.Status = status(res.Coverage)
	return res
}

// status applies the message thresholds: any missing block is critical, a
// majority of unconfigured blocks is major, any other gap is minor.
func status(cov Coverage) models.Status {
	switch {
	case cov.Checked == 0:
		return models.StatusInfo
	case cov.Missing > 0:
		return models.StatusCritical
	case cov.NotConfigured*2 > cov.Checked:
		return models.StatusMajor
	case cov.NotConfigured > 0 || cov.Partial > 0:
		return models.StatusMinor
	}
	return models.StatusOK
}

func (a *Analyzer) inspect(t *models.Tag, id string) Detail {
	d := Detail{ID: id, Name: t.Name, Paused: t.Paused, Missing: []string{}}

	present := make(map[string]bool)
	unset := make(map[string]bool)
	found := false
	for _, p := range t.Parameters {
		if a.scanParam(p, 0, present, unset) {
			found = true
		}
	}

	cs := t.ConsentSettings
	switch {
	case cs == nil && !found:
		d.State = StateMissing
		d.Severity = models.SeverityCritical
		d.Missing = append(d.Missing, a.required...)
		return d
	case cs != nil && strings.EqualFold(strings.TrimSpace(cs.Status), "NEEDED"):
		if cs.ConsentType != nil {
			for _, v := range listValues(*cs.ConsentType) {
				present[v] = true
			}
		}
	case len(present) == 0:
		// NOT_SET, NOT_NEEDED, or only unset consent parameters
		d.State = StateNotConfigured
		d.Severity = models.SeverityMajor
		d.Missing = append(d.Missing, a.required...)
		return d
	}

	for _, req := range a.required {
		if !present[req] || unset[req] {
			d.Missing = append(d.Missing, req)
		}
	}
	if len(d.Missing) > 0 {
		d.State = StatePartial
		d.Severity = models.SeverityMinor
		return d
	}
	d.State = StateOK
	return d
}

// scanParam records consent category parameters and reports whether any
// were found below p.
func (a *Analyzer) scanParam(p models.Parameter, depth int, present, unset map[string]bool) bool {
	if depth >= maxParamDepth {
		return false
	}
	found := false
	key := strings.ToLower(strings.TrimSpace(p.Key))
	if a.isCategory(key) {
		found = true
		switch strings.ToLower(strings.TrimSpace(p.Value)) {
		case "", "not_configured", "not_set":
			unset[key] = true
		default:
			present[key] = true
		}
	}
	for _, c := range p.List {
		if a.scanParam(c, depth+1, present, unset) {
			found = true
		}
	}
	for _, c := range p.Map {
		if a.scanParam(c, depth+1, present, unset) {
			found = true
		}
	}
	return found
}

func (a *Analyzer) isCategory(key string) bool {
	for _, r := range a.required {
		if r == key {
			return true
		}
	}
	return false
}

func listValues(p models.Parameter) []string {
	var out []string
	if v := strings.ToLower(strings.TrimSpace(p.Value)); v != "" {
		out = append(out, v)
	}
	for _, c := range p.List {
		out = append(out, listValues(c)...)
	}
	return out
}

func issueFor(d Detail) (models.Issue, bool) {
	issue := models.Issue{
		EntityKind: models.KindTag,
		EntityID:   d.ID,
		EntityName: d.Name,
		Severity:   d.Severity,
	}
	switch d.State {
	case StateMissing:
		issue.Categories = []string{models.CategoryConsentMissing}
		issue.Reason = "marketing tag has no consent settings"
		issue.Suggestion = "Set the tag's consent settings to require " + strings.Join(d.Missing, " and ") + "."
	case StateNotConfigured:
		issue.Categories = []string{models.CategoryConsentNotConfigured}
		issue.Reason = "marketing tag does not require any consent"
		issue.Suggestion = "Change the consent status to NEEDED and list " + strings.Join(d.Missing, " and ") + "."
	case StatePartial:
		issue.Categories = []string{models.CategoryConsentPartial}
		issue.Reason = fmt.Sprintf("marketing tag does not require %s", strings.Join(d.Missing, ", "))
		issue.Suggestion = "Add the missing consent types to the tag's consent settings."
	default:
		return models.Issue{}, false
	}
	return issue, true
}
