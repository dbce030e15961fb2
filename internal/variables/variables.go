// Package variables scores the user-defined variables of a container:
// data layer fallbacks, lookup table defaults, regex table patterns, CSS
// selector robustness, unsafe Custom JavaScript, and general hygiene
// (unused and duplicate names).
package variables

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/dlclark/regexp2"

	"evalgo.org/tagscope/internal/config"
	"evalgo.org/tagscope/internal/usage"
	"evalgo.org/tagscope/models"
)

// Kind is the analysis family of a variable type.
type Kind string

const (
	KindDLV    Kind = "dlv"
	KindLookup Kind = "lookup"
	KindRegex  Kind = "regex"
	KindCSS    Kind = "css"
	KindJS     Kind = "js"
	KindOther  Kind = "other"
)

// KindOf maps a GTM variable to its analysis family.
func KindOf(v *models.Variable) Kind {
	switch strings.ToLower(strings.TrimSpace(v.Type)) {
	case "v":
		return KindDLV
	case "smm", "lookup":
		return KindLookup
	case "remm", "regex":
		return KindRegex
	case "jsm":
		return KindJS
	case "css":
		return KindCSS
	case "d":
		if sel, _ := models.ParameterValue(v.Parameters, "selectorType"); strings.EqualFold(sel, "CSS") {
			return KindCSS
		}
	}
	return KindOther
}

var unsafeJSRes = []struct {
	re    *regexp.Regexp
	label string
}{
	{regexp.MustCompile(`\beval\s*\(`), "eval("},
	{regexp.MustCompile(`\bdocument\s*\.\s*write(?:ln)?\s*\(`), "document.write("},
	{regexp.MustCompile(`\bnew\s+Function\s*\(`), "new Function("},
}

// Stats are the variable counts of one container.
type Stats struct {
	Total                int `json:"total"`
	Unused               int `json:"unused"`
	DLVMissingFallback   int `json:"dlv_missing_fallback"`
	LookupWithoutDefault int `json:"lookup_without_default"`
	RegexMalformed       int `json:"regex_malformed"`
	CSSFragileSelectors  int `json:"css_fragile_selectors"`
	JSUnsafeCode         int `json:"js_unsafe_code"`
	Duplicates           int `json:"duplicates"`

	// ByKind counts variables per analysis family
	ByKind map[Kind]int `json:"by_kind"`
}

// Breakdown holds the sub-scores, each in [0,1].
type Breakdown struct {
	DLV       float64 `json:"dlv"`
	Lookup    float64 `json:"lookup"`
	Hygiene   float64 `json:"hygiene"`
	Selectors float64 `json:"selectors"`
	JS        float64 `json:"js"`
	Regex     float64 `json:"regex"`
}

// Result is the variable quality of a container.
type Result struct {
	Stats     Stats          `json:"stats"`
	Breakdown Breakdown      `json:"breakdown"`
	Issues    []models.Issue `json:"issues"`
	Status    models.Status  `json:"-"`
}

// Analyzer evaluates variable quality.
type Analyzer struct {
	cfg config.VariablesConfig
}

// New creates an analyzer.
func New(cfg config.VariablesConfig) *Analyzer {
	return &Analyzer{cfg: cfg}
}

// Analyze computes variable statistics, sub-scores and issues.
func (a *Analyzer) Analyze(c *models.Container, g *usage.Graph) Result {
	res := Result{Issues: []models.Issue{}}
	res.Stats.ByKind = map[Kind]int{}
	if c == nil {
		c = &models.Container{}
	}
	if g == nil {
		g = usage.Build(c, 0)
	}

	st := &res.Stats
	st.Total = len(c.Variables)
	firstByName := make(map[string]string)

	for i := range c.Variables {
		v := &c.Variables[i]
		id := v.EntityID(i)
		issue := func(category string, sev models.Severity, reason, suggestion string) {
			res.Issues = append(res.Issues, models.Issue{
				EntityKind: models.KindVariable,
				EntityID:   id,
				EntityName: v.Name,
				Categories: []string{category},
				Severity:   sev,
				Reason:     reason,
				Suggestion: suggestion,
			})
		}

		kind := KindOf(v)
		st.ByKind[kind]++

		if !g.HasName(v.Name) {
			st.Unused++
			issue(models.CategoryUnused, models.SeverityMinor,
				fmt.Sprintf("variable is never referenced as {{%s}}", v.Name),
				"Delete the variable if nothing reads it.")
		}

		if norm := strings.ToLower(strings.TrimSpace(v.Name)); norm != "" {
			if first, ok := firstByName[norm]; ok {
				st.Duplicates++
				issue(models.CategoryVariableDuplicate, models.SeverityMinor,
					fmt.Sprintf("name collides with variable %s when case is ignored", first),
					"Rename or merge the variables so each name is unique.")
			} else {
				firstByName[norm] = id
			}
		}

		switch kind {
		case KindDLV:
			if !hasFallback(v.Parameters) {
				st.DLVMissingFallback++
				issue(models.CategoryDLVMissingFallback, a.cfg.SeverityFor(models.CategoryDLVMissingFallback),
					"data layer variable has no default value",
					"Set a default value so tags receive a defined value when the key is absent.")
			}
		case KindLookup:
			if !models.HasParameter(v.Parameters, "defaultTable") && !hasFallback(v.Parameters) {
				st.LookupWithoutDefault++
				issue(models.CategoryLookupWithoutDefault, models.SeverityCritical,
					"lookup table has no default value; unmatched inputs resolve to undefined",
					"Add a default value to the lookup table.")
			}
		case KindRegex:
			if bad := malformedPatterns(v.Parameters); len(bad) > 0 {
				st.RegexMalformed++
				issue(models.CategoryRegexMalformed, a.cfg.SeverityFor(models.CategoryRegexMalformed),
					fmt.Sprintf("regex table has patterns that do not compile: %s", strings.Join(bad, "; ")),
					"Fix the patterns; they are evaluated as JavaScript regular expressions.")
			}
		case KindCSS:
			if fragile, part := FragileSelector(selectorOf(v.Parameters)); fragile {
				st.CSSFragileSelectors++
				issue(models.CategoryCSSFragileSelector, a.cfg.SeverityFor(models.CategoryCSSFragileSelector),
					fmt.Sprintf("selector relies on generated markup (%s)", part),
					"Select by a stable attribute such as an id or a data-* attribute.")
			}
		case KindJS:
			if found := unsafeCalls(jsBody(v.Parameters)); len(found) > 0 {
				st.JSUnsafeCode++
				issue(models.CategoryJSUnsafeCode, models.SeverityCritical,
					fmt.Sprintf("custom JavaScript uses %s", strings.Join(found, ", ")),
					"Rewrite the variable without dynamic code evaluation or document.write.")
			}
		}
	}

	hygiene := st.Unused + st.Duplicates
	res.Breakdown = Breakdown{
		DLV:       subScore(st.DLVMissingFallback, st.ByKind[KindDLV]),
		Lookup:    subScore(st.LookupWithoutDefault, st.ByKind[KindLookup]),
		Hygiene:   subScore(hygiene, st.Total),
		Selectors: subScore(st.CSSFragileSelectors, st.ByKind[KindCSS]),
		JS:        subScore(st.JSUnsafeCode, st.ByKind[KindJS]),
		Regex:     subScore(st.RegexMalformed, st.ByKind[KindRegex]),
	}
	res.Status = models.StatusOf(res.Issues)
	return res
}

// hasFallback reports whether a default value is configured and enabled.
func hasFallback(params []models.Parameter) bool {
	if set, ok := models.FindParameter(params, "setDefaultValue"); ok {
		if enabled, known := set.Bool(); known && !enabled {
			return false
		}
	}
	p, ok := models.FindParameter(params, "defaultValue")
	return ok && (p.Value != "" || !p.IsScalar())
}

// malformedPatterns compiles every regex table key with the ECMAScript
// dialect and returns the ones that fail.
func malformedPatterns(params []models.Parameter) []string {
	opts := regexp2.RegexOptions(regexp2.ECMAScript)
	if p, ok := models.FindParameter(params, "ignoreCase"); ok {
		if on, _ := p.Bool(); on {
			opts |= regexp2.IgnoreCase
		}
	}

	table, _ := models.FindParameter(params, "map")
	var bad []string
	for _, row := range table.List {
		key, ok := row.Get("key")
		if !ok {
			continue
		}
		if _, err := regexp2.Compile(key.Value, opts); err != nil {
			bad = append(bad, fmt.Sprintf("%q", key.Value))
		}
	}
	return bad
}

func selectorOf(params []models.Parameter) string {
	for _, k := range []string{"elementSelector", "selector", "cssSelector"} {
		if v, ok := models.ParameterValue(params, k); ok && v != "" {
			return v
		}
	}
	return ""
}

func jsBody(params []models.Parameter) string {
	v, _ := models.ParameterValue(params, "javascript")
	return v
}

func unsafeCalls(src string) []string {
	if src == "" {
		return nil
	}
	var found []string
	for _, u := range unsafeJSRes {
		if u.re.MatchString(src) {
			found = append(found, u.label)
		}
	}
	return found
}

// subScore is max(0, 1 - count/total), with an empty family scoring 1.
func subScore(count, total int) float64 {
	if total <= 0 {
		return 1
	}
	return math.Max(0, 1-float64(count)/float64(total))
}
