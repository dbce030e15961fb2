package analysis

import (
	"evalgo.org/tagscope/internal/consent"
	"evalgo.org/tagscope/internal/htmlsec"
	"evalgo.org/tagscope/internal/issueindex"
	"evalgo.org/tagscope/internal/scoring"
	"evalgo.org/tagscope/internal/taglint"
	"evalgo.org/tagscope/internal/triggers"
	"evalgo.org/tagscope/internal/usage"
	"evalgo.org/tagscope/internal/variables"
	"evalgo.org/tagscope/models"
)

// Report is the complete, deterministic analysis of one container. Result
// sections of analyzers that failed are nil and carry an unavailable
// message.
type Report struct {
	// ID is derived from the container and the rule parameters, so equal
	// inputs always yield the same ID
	ID string `json:"id"`

	Quality         QualityResult         `json:"quality"`
	Tags            TagsResult            `json:"tags"`
	ConsentMode     ConsentModeResult     `json:"consent_mode"`
	TriggerQuality  TriggerQualityResult  `json:"trigger_quality"`
	VariableQuality VariableQualityResult `json:"variable_quality"`
	HTMLSecurity    HTMLSecurityResult    `json:"html_security"`

	// Issues is the merged, sorted issue list of all analyzers
	Issues []models.Issue    `json:"issues"`
	Index  *issueindex.Index `json:"index"`
	Usage  *usage.Graph      `json:"usage"`

	// Warnings are input structure problems that did not stop the analysis
	Warnings []string `json:"warnings"`

	// Unavailable names the analyzers that failed
	Unavailable []string `json:"unavailable"`
}

// QualityResult is the weighted score with its envelope.
type QualityResult struct {
	scoring.QualityScore
	Message models.Message `json:"message"`
}

// TagsResult is the lifecycle and naming summary.
type TagsResult struct {
	Summary *taglint.Summary `json:"summary"`
	Message models.Message   `json:"message"`
}

// ConsentModeResult is the consent coverage with its envelope.
type ConsentModeResult struct {
	Coverage *consent.Coverage `json:"consent_coverage"`
	Message  models.Message    `json:"message"`
}

// TriggerQualityResult is the trigger analysis with its envelope.
type TriggerQualityResult struct {
	TriggerQuality *triggers.Result `json:"trigger_quality"`
	Message        models.Message   `json:"message"`
}

// VariableQualityResult is the variable analysis with its envelope.
type VariableQualityResult struct {
	VariableQuality *variables.Result `json:"variable_quality"`
	Message         models.Message    `json:"message"`
}

// HTMLSecurityResult is the Custom-HTML analysis with its envelope.
type HTMLSecurityResult struct {
	HTMLSecurity *htmlsec.Result `json:"html_security"`
	Message      models.Message  `json:"message"`
}

// Filter returns the issues carrying category, or all issues when
// category is empty.
func (r *Report) Filter(category string) []models.Issue {
	if category == "" {
		return r.Issues
	}
	out := make([]models.Issue, 0)
	for _, i := range r.Issues {
		if i.HasCategory(category) {
			out = append(out, i)
		}
	}
	return out
}

// Counts returns the number of issues per severity.
func (r *Report) Counts() map[models.Severity]int {
	return models.CountBySeverity(r.Issues)
}
