package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Severity orders the urgency of a detected issue.
type Severity string

const (
	// SeverityMinor indicates a cosmetic or low-impact finding
	SeverityMinor Severity = "minor"

	// SeverityMajor indicates a finding that degrades data quality
	SeverityMajor Severity = "major"

	// SeverityCritical indicates data loss, compliance or security exposure
	SeverityCritical Severity = "critical"
)

// Rank returns 1, 2 or 3 for minor, major and critical; 0 otherwise.
func (s Severity) Rank() int {
	switch s {
	case SeverityMinor:
		return 1
	case SeverityMajor:
		return 2
	case SeverityCritical:
		return 3
	}
	return 0
}

// Valid reports whether s is one of the three known severities.
func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// ParseSeverity parses a case-insensitive severity name.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	if !sev.Valid() {
		return "", fmt.Errorf("invalid severity %q (must be minor, major or critical)", s)
	}
	return sev, nil
}

// WorstSeverity returns the more urgent of a and b.
func WorstSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// Issue categories. HTML security issues carry CategoryHTMLSecurity plus the
// rule-specific category.
const (
	CategoryPaused          = "paused"
	CategoryUAObsolete      = "ua_obsolete"
	CategoryNaming          = "naming"
	CategoryNoTrigger       = "no_trigger"
	CategoryDanglingTrigger = "dangling_trigger"
	CategoryDanglingVar     = "dangling_variable"

	CategoryConsentMissing       = "consent_missing"
	CategoryConsentNotConfigured = "consent_not_configured"
	CategoryConsentPartial       = "consent_partial"

	CategoryTriggerAllPages  = "trigger_all_pages"
	CategoryTriggerTiming    = "trigger_timing"
	CategoryTriggerUnused    = "trigger_unused"
	CategoryTriggerDuplicate = "trigger_duplicate"
	CategoryTriggerBlocking  = "trigger_blocking"

	CategoryUnused               = "unused"
	CategoryDLVMissingFallback   = "dlv_missing_fallback"
	CategoryLookupWithoutDefault = "lookup_without_default"
	CategoryRegexMalformed       = "regex_malformed"
	CategoryCSSFragileSelector   = "css_fragile_selectors"
	CategoryJSUnsafeCode         = "js_unsafe_code"
	CategoryVariableDuplicate    = "variable_duplicate"

	CategoryHTMLSecurity    = "html_security"
	CategoryHTMLEvalNetwork = "html_eval_network"
	CategoryHTMLXSS         = "html_xss"
	CategoryHTMLPIILeak     = "html_pii_leak"
	CategoryHTMLTimer       = "html_timer"
	CategoryHTMLPostMessage = "html_postmessage"
	CategoryHTMLTiming      = "html_timing"
	CategoryHTMLNoTryCatch  = "html_no_try_catch"
)

// Issue is a single finding against one container entity.
type Issue struct {
	// EntityKind is tag, trigger or variable
	EntityKind EntityKind `json:"entity_kind"`

	// EntityID is the GTM ID (or synthetic "#<index>") of the entity
	EntityID string `json:"entity_id"`

	// EntityName is the entity's display name
	EntityName string `json:"entity_name,omitempty"`

	// Categories classify the issue; the last entry is the most specific
	Categories []string `json:"categories"`

	Severity   Severity `json:"severity"`
	Reason     string   `json:"reason"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// EntityKey returns the index key "<kind>:<id>".
func EntityKey(kind EntityKind, id string) string {
	return string(kind) + ":" + id
}

// Key returns the index key of the issue's entity.
func (i Issue) Key() string {
	return EntityKey(i.EntityKind, i.EntityID)
}

// Category returns the most specific category of the issue.
func (i Issue) Category() string {
	if len(i.Categories) == 0 {
		return ""
	}
	return i.Categories[len(i.Categories)-1]
}

// HasCategory reports whether the issue carries category c.
func (i Issue) HasCategory(c string) bool {
	for _, cat := range i.Categories {
		if cat == c {
			return true
		}
	}
	return false
}

// SortIssues orders issues by entity kind, numeric-aware entity ID,
// category and reason. The sort is stable so equal issues keep their
// emission order.
func SortIssues(issues []Issue) {
	sort.SliceStable(issues, func(a, b int) bool {
		x, y := issues[a], issues[b]
		if x.EntityKind != y.EntityKind {
			return x.EntityKind < y.EntityKind
		}
		if c := CompareIDs(x.EntityID, y.EntityID); c != 0 {
			return c < 0
		}
		if cx, cy := strings.Join(x.Categories, ","), strings.Join(y.Categories, ","); cx != cy {
			return cx < cy
		}
		return x.Reason < y.Reason
	})
}

// CompareIDs compares GTM IDs numerically when both are integers.
// Numeric IDs sort before non-numeric ones.
func CompareIDs(a, b string) int {
	na, errA := strconv.ParseUint(a, 10, 64)
	nb, errB := strconv.ParseUint(b, 10, 64)
	switch {
	case errA == nil && errB == nil:
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		}
		return 0
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	return strings.Compare(a, b)
}

// CountBySeverity tallies issues per severity.
func CountBySeverity(issues []Issue) map[Severity]int {
	counts := make(map[Severity]int, 3)
	for _, i := range issues {
		counts[i.Severity]++
	}
	return counts
}
