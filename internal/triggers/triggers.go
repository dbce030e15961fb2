// Package triggers scores the trigger collection of a container:
// specificity of page-level triggers, blocking triggers on marketing tags,
// firing timing relative to the needs of the fired tags, and single-page
// application support.
package triggers

import (
	"fmt"
	"math"
	"strings"

	"evalgo.org/tagscope/internal/classify"
	"evalgo.org/tagscope/internal/config"
	"evalgo.org/tagscope/internal/usage"
	"evalgo.org/tagscope/models"
)

// Stats are the trigger counts of one container.
type Stats struct {
	TotalTriggers           int  `json:"total_triggers"`
	UnusedTriggers          int  `json:"unused_triggers"`
	AllPagesUnfiltered      int  `json:"all_pages_unfiltered"`
	Duplicates              int  `json:"duplicates"`
	HistoryChangePresent    bool `json:"history_change_present"`
	WithBlockingOnMarketing int  `json:"with_blocking_on_marketing"`
	InappropriateBlocking   int  `json:"inappropriate_blocking"`
	NonOptimalTiming        int  `json:"non_optimal_timing"`
}

// Breakdown holds the sub-scores, each in [0,1].
type Breakdown struct {
	Specificity float64 `json:"specificity"`
	Blocking    float64 `json:"blocking"`
	Timing      float64 `json:"timing"`
	SPA         float64 `json:"spa"`
}

// Result is the trigger quality of a container.
type Result struct {
	Stats     Stats          `json:"stats"`
	Breakdown Breakdown      `json:"breakdown"`
	Issues    []models.Issue `json:"issues"`
	Status    models.Status  `json:"-"`
}

// Analyzer evaluates trigger quality.
type Analyzer struct {
	spaPenalty float64
}

// New creates an analyzer.
func New(cfg config.TriggersConfig) *Analyzer {
	p := cfg.SPAPenalty
	if p < 0 || p > 1 || math.IsNaN(p) {
		p = config.DefaultAnalysisConfig().Triggers.SPAPenalty
	}
	return &Analyzer{spaPenalty: p}
}

type triggerRef struct {
	index int
	id    string
	t     *models.Trigger
}

// Analyze computes trigger statistics, sub-scores and issues.
func (a *Analyzer) Analyze(c *models.Container, g *usage.Graph) Result {
	res := Result{Issues: []models.Issue{}}
	if c == nil {
		c = &models.Container{}
	}
	if g == nil {
		g = usage.Build(c, 0)
	}

	byID := make(map[string]triggerRef, len(c.Triggers))
	for i := range c.Triggers {
		t := &c.Triggers[i]
		id := t.EntityID(i)
		if _, dup := byID[id]; !dup {
			byID[id] = triggerRef{index: i, id: id, t: t}
		}
	}

	issue := func(t *models.Trigger, id, category string, sev models.Severity, reason, suggestion string) {
		res.Issues = append(res.Issues, models.Issue{
			EntityKind: models.KindTrigger,
			EntityID:   id,
			EntityName: t.Name,
			Categories: []string{category},
			Severity:   sev,
			Reason:     reason,
			Suggestion: suggestion,
		})
	}

	st := &res.Stats
	st.TotalTriggers = len(c.Triggers)

	firstBySignature := make(map[string]string)
	for i := range c.Triggers {
		t := &c.Triggers[i]
		id := t.EntityID(i)

		if IsHistoryChange(t.Type) {
			st.HistoryChangePresent = true
		}

		if !g.HasTriggerID(id) {
			st.UnusedTriggers++
			issue(t, id, models.CategoryTriggerUnused, models.SeverityMinor,
				"trigger is not used by any tag",
				"Delete the trigger or attach it to the tag it was created for.")
		}

		if IsPageview(t.Type) && len(t.Filters) == 0 {
			st.AllPagesUnfiltered++
			issue(t, id, models.CategoryTriggerAllPages, models.SeverityMinor,
				"page view trigger has no filter and fires on every page",
				"Add a page filter, or reuse the built-in All Pages trigger.")
		}

		sig := Signature(t)
		if first, ok := firstBySignature[sig]; ok {
			st.Duplicates++
			issue(t, id, models.CategoryTriggerDuplicate, models.SeverityMinor,
				fmt.Sprintf("trigger duplicates trigger %s", first),
				"Merge the duplicates and point every tag at one trigger.")
		} else {
			firstBySignature[sig] = id
		}
	}

	a.blocking(c, byID, &res)
	a.timing(c, byID, &res)

	total := float64(st.TotalTriggers)
	res.Breakdown = Breakdown{
		Specificity: subScore(st.AllPagesUnfiltered, total),
		Blocking:    subScore(st.InappropriateBlocking, total),
		Timing:      subScore(st.NonOptimalTiming, total),
		SPA:         1,
	}
	if st.TotalTriggers > 0 && !st.HistoryChangePresent {
		res.Breakdown.SPA = a.spaPenalty
	}

	res.Status = models.StatusOf(res.Issues)
	return res
}

// blocking counts triggers that block marketing tags and flags the
// inappropriate ones: unfiltered page-level triggers, which block the tag
// everywhere, and triggers that also fire the same tag.
func (a *Analyzer) blocking(c *models.Container, byID map[string]triggerRef, res *Result) {
	onMarketing := make(map[string]bool)
	flagged := make(map[string]bool)

	for i := range c.Tags {
		tag := &c.Tags[i]
		if !classify.IsMarketing(tag) {
			continue
		}
		firing := make(map[string]bool, len(tag.FiringTriggerIDs))
		for _, id := range tag.FiringTriggerIDs {
			firing[strings.TrimSpace(id)] = true
		}

		for _, raw := range tag.BlockingTriggerIDs {
			id := strings.TrimSpace(raw)
			ref, known := byID[id]
			builtIn := models.IsBuiltInTriggerID(id)
			if !known && !builtIn {
				// dangling, reported elsewhere
				continue
			}
			onMarketing[id] = true

			var reason string
			switch {
			case firing[id]:
				reason = fmt.Sprintf("trigger both fires and blocks marketing tag %q", tag.Name)
			case builtIn || isUnfilteredPageLevel(ref.t):
				reason = fmt.Sprintf("unfiltered page-level trigger blocks marketing tag %q on every page", tag.Name)
			default:
				continue
			}
			key := id
			if !known {
				key = tag.EntityID(i) + "/" + id
			}
			if flagged[key] {
				continue
			}
			flagged[key] = true

			if known {
				res.Issues = append(res.Issues, models.Issue{
					EntityKind: models.KindTrigger,
					EntityID:   id,
					EntityName: ref.t.Name,
					Categories: []string{models.CategoryTriggerBlocking},
					Severity:   models.SeverityMajor,
					Reason:     reason,
					Suggestion: "Use a blocking trigger with a specific condition, such as a consent or page filter.",
				})
			} else {
				res.Issues = append(res.Issues, models.Issue{
					EntityKind: models.KindTag,
					EntityID:   tag.EntityID(i),
					EntityName: tag.Name,
					Categories: []string{models.CategoryTriggerBlocking},
					Severity:   models.SeverityMajor,
					Reason:     "tag is blocked by a built-in trigger and never fires",
					Suggestion: "Remove the built-in trigger from the blocking list.",
				})
			}
		}
	}
	res.Stats.WithBlockingOnMarketing = len(onMarketing)
	res.Stats.InappropriateBlocking = countKnown(flagged, byID)
}

// timing flags triggers that fire a tag later than its class needs.
func (a *Analyzer) timing(c *models.Container, byID map[string]triggerRef, res *Result) {
	flagged := make(map[string]bool)
	for i := range c.Tags {
		tag := &c.Tags[i]
		class := classify.Of(tag)
		preferred := PreferredTiming(class)
		for _, raw := range tag.FiringTriggerIDs {
			id := strings.TrimSpace(raw)
			ref, ok := byID[id]
			if !ok || flagged[id] {
				continue
			}
			tm := TimingOf(ref.t.Type)
			if tm == TimingNone || tm <= preferred {
				continue
			}
			flagged[id] = true
			res.Issues = append(res.Issues, models.Issue{
				EntityKind: models.KindTrigger,
				EntityID:   id,
				EntityName: ref.t.Name,
				Categories: []string{models.CategoryTriggerTiming},
				Severity:   models.SeverityMinor,
				Reason: fmt.Sprintf("%s tag %q waits for %s; %s is early enough",
					class, tag.Name, tm, preferred),
				Suggestion: fmt.Sprintf("Fire the tag on a %s trigger to avoid losing hits from early exits.", preferred),
			})
		}
	}
	res.Stats.NonOptimalTiming = len(flagged)
}

func isUnfilteredPageLevel(t *models.Trigger) bool {
	if t == nil {
		return false
	}
	switch TimingOf(t.Type) {
	case TimingPageview, TimingDOMReady, TimingWindowLoaded:
		return len(t.Filters) == 0
	}
	return false
}

func countKnown(ids map[string]bool, byID map[string]triggerRef) int {
	n := 0
	for id := range ids {
		if _, ok := byID[id]; ok {
			n++
		}
	}
	return n
}

// subScore is max(0, 1 - count/total), with an empty collection scoring 1.
func subScore(count int, total float64) float64 {
	if total <= 0 {
		return 1
	}
	return math.Max(0, 1-float64(count)/total)
}
