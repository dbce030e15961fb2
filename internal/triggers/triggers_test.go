package triggers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalgo.org/tagscope/internal/classify"
	"evalgo.org/tagscope/internal/config"
	"evalgo.org/tagscope/internal/usage"
	"evalgo.org/tagscope/models"
)

func analyze(c *models.Container) Result {
	a := New(config.DefaultAnalysisConfig().Triggers)
	return a.Analyze(c, usage.Build(c, 0))
}

func countCategory(issues []models.Issue, category string) int {
	n := 0
	for _, i := range issues {
		if i.HasCategory(category) {
			n++
		}
	}
	return n
}

// Five unfiltered page views; only triggers 4 and 5 share a signature.
func TestScenarioB(t *testing.T) {
	c := &models.Container{Triggers: []models.Trigger{
		{TriggerID: "1", Name: "pv_a", Type: "PAGEVIEW", Parameters: []models.Parameter{{Key: "note", Value: "a"}}},
		{TriggerID: "2", Name: "pv_b", Type: "PAGEVIEW", Parameters: []models.Parameter{{Key: "note", Value: "b"}}},
		{TriggerID: "3", Name: "pv_c", Type: "PAGEVIEW", Parameters: []models.Parameter{{Key: "note", Value: "c"}}},
		{TriggerID: "4", Name: "pv_d", Type: "PAGEVIEW"},
		{TriggerID: "5", Name: "pv_e", Type: "PAGEVIEW"},
	}}

	res := analyze(c)

	assert.Equal(t, 5, res.Stats.TotalTriggers)
	assert.Equal(t, 5, res.Stats.AllPagesUnfiltered)
	assert.Equal(t, 1, res.Stats.Duplicates)
	assert.Less(t, res.Breakdown.Specificity, 1.0)
	assert.Equal(t, 0.0, res.Breakdown.Specificity)

	require.Equal(t, 1, countCategory(res.Issues, models.CategoryTriggerDuplicate))
	for _, i := range res.Issues {
		if i.HasCategory(models.CategoryTriggerDuplicate) {
			assert.Equal(t, "5", i.EntityID)
			assert.Contains(t, i.Reason, "trigger 4")
		}
	}
}

func TestSignature_IgnoresNameAndConditionOrder(t *testing.T) {
	cond := func(op, arg string) models.Condition {
		return models.Condition{Type: op, Parameters: []models.Parameter{
			{Type: models.ParamTemplate, Key: "arg1", Value: arg},
			{Type: models.ParamTemplate, Key: "arg0", Value: "{{Page Path}}"},
		}}
	}
	a := models.Trigger{Name: "a", Type: "PAGEVIEW", Filters: []models.Condition{cond("EQUALS", "/x"), cond("CONTAINS", "y")}}
	b := models.Trigger{Name: "b", Type: "pageview", Filters: []models.Condition{cond("CONTAINS", "y"), cond("EQUALS", "/x")}}
	d := models.Trigger{Name: "d", Type: "PAGEVIEW", Filters: []models.Condition{cond("EQUALS", "/z")}}

	assert.Equal(t, Signature(&a), Signature(&b))
	assert.NotEqual(t, Signature(&a), Signature(&d))
}

func TestAnalyze_Unused(t *testing.T) {
	c := &models.Container{
		Tags: []models.Tag{{TagID: "1", Name: "t", Type: "html", FiringTriggerIDs: []string{"10"}}},
		Triggers: []models.Trigger{
			{TriggerID: "10", Name: "used", Type: "CLICK"},
			{TriggerID: "11", Name: "group_member", Type: "CLICK"},
			{TriggerID: "12", Name: "group", Type: "TRIGGER_GROUP", Parameters: []models.Parameter{
				{Type: models.ParamList, Key: "triggerIds", List: []models.Parameter{{Type: models.ParamTriggerReference, Value: "11"}}},
			}},
		},
	}

	res := analyze(c)
	assert.Equal(t, 1, res.Stats.UnusedTriggers)
	require.Equal(t, 1, countCategory(res.Issues, models.CategoryTriggerUnused))
	for _, i := range res.Issues {
		if i.HasCategory(models.CategoryTriggerUnused) {
			assert.Equal(t, "12", i.EntityID)
		}
	}
}

func TestAnalyze_Blocking(t *testing.T) {
	c := &models.Container{
		Tags: []models.Tag{
			{TagID: "1", Name: "ads_conv", Type: "awct", FiringTriggerIDs: []string{"20"}, BlockingTriggerIDs: []string{"20", "21", "22"}},
			{TagID: "2", Name: "ads_remarketing", Type: "sp", FiringTriggerIDs: []string{"20"}, BlockingTriggerIDs: []string{"21"}},
			{TagID: "3", Name: "ga4", Type: "googtag", FiringTriggerIDs: []string{"20"}, BlockingTriggerIDs: []string{"21"}},
		},
		Triggers: []models.Trigger{
			{TriggerID: "20", Name: "checkout", Type: "CUSTOM_EVENT"},
			{TriggerID: "21", Name: "every_page", Type: "DOM_READY"},
			{TriggerID: "22", Name: "internal_traffic", Type: "PAGEVIEW", Filters: []models.Condition{{Type: "CONTAINS"}}},
		},
	}

	res := analyze(c)
	assert.Equal(t, 3, res.Stats.WithBlockingOnMarketing)
	assert.Equal(t, 2, res.Stats.InappropriateBlocking)
	assert.Equal(t, 2, countCategory(res.Issues, models.CategoryTriggerBlocking))
	assert.InDelta(t, 1-2.0/3.0, res.Breakdown.Blocking, 1e-9)
	assert.Equal(t, models.StatusMajor, res.Status)
}

func TestAnalyze_BuiltInBlocking(t *testing.T) {
	c := &models.Container{
		Tags: []models.Tag{{TagID: "1", Name: "ads", Type: "awct", FiringTriggerIDs: []string{"5"}, BlockingTriggerIDs: []string{models.BuiltInAllPagesTriggerID}}},
		Triggers: []models.Trigger{{TriggerID: "5", Name: "buy", Type: "CUSTOM_EVENT"}},
	}
	res := analyze(c)
	require.Equal(t, 1, countCategory(res.Issues, models.CategoryTriggerBlocking))
	for _, i := range res.Issues {
		if i.HasCategory(models.CategoryTriggerBlocking) {
			assert.Equal(t, "tag:1", i.Key())
		}
	}
	assert.Equal(t, 0, res.Stats.InappropriateBlocking)
}

func TestAnalyze_Timing(t *testing.T) {
	c := &models.Container{
		Tags: []models.Tag{
			{TagID: "1", Name: "ga4_config", Type: "googtag", FiringTriggerIDs: []string{"30"}},
			{TagID: "2", Name: "chat_widget", Type: "html", FiringTriggerIDs: []string{"30"}},
			{TagID: "3", Name: "ads_conv", Type: "awct", FiringTriggerIDs: []string{"31"}},
		},
		Triggers: []models.Trigger{
			{TriggerID: "30", Name: "window_loaded", Type: "WINDOW_LOADED"},
			{TriggerID: "31", Name: "dom_ready", Type: "domReady"},
		},
	}

	res := analyze(c)
	assert.Equal(t, 1, res.Stats.NonOptimalTiming)
	require.Equal(t, 1, countCategory(res.Issues, models.CategoryTriggerTiming))
	for _, i := range res.Issues {
		if i.HasCategory(models.CategoryTriggerTiming) {
			assert.Equal(t, "30", i.EntityID)
			assert.Contains(t, i.Reason, "Window Loaded")
		}
	}
	assert.InDelta(t, 0.5, res.Breakdown.Timing, 1e-9)
}

func TestAnalyze_SPA(t *testing.T) {
	without := &models.Container{Triggers: []models.Trigger{{TriggerID: "1", Name: "p", Type: "CLICK"}}}
	with := &models.Container{Triggers: []models.Trigger{{TriggerID: "1", Name: "h", Type: "HISTORY_CHANGE"}}}

	assert.Equal(t, 0.5, analyze(without).Breakdown.SPA)
	assert.True(t, analyze(with).Stats.HistoryChangePresent)
	assert.Equal(t, 1.0, analyze(with).Breakdown.SPA)
}

func TestAnalyze_Empty(t *testing.T) {
	res := analyze(&models.Container{})
	assert.Equal(t, Breakdown{Specificity: 1, Blocking: 1, Timing: 1, SPA: 1}, res.Breakdown)
	assert.Empty(t, res.Issues)
	assert.Equal(t, models.StatusOK, res.Status)
}

func TestTimingOf(t *testing.T) {
	assert.Equal(t, TimingPageview, TimingOf("PAGEVIEW"))
	assert.Equal(t, TimingDOMReady, TimingOf("DOM_READY"))
	assert.Equal(t, TimingDOMReady, TimingOf("domReady"))
	assert.Equal(t, TimingWindowLoaded, TimingOf("windowLoaded"))
	assert.Equal(t, TimingConsentInit, TimingOf("CONSENT_INIT"))
	assert.Equal(t, TimingNone, TimingOf("CLICK"))
	assert.Equal(t, TimingPageview, BuiltInTiming(models.BuiltInAllPagesTriggerID))
	assert.Equal(t, TimingDOMReady, PreferredTiming(classify.Marketing))
	assert.Equal(t, "event", TimingNone.String())
}
