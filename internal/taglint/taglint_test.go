package taglint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalgo.org/tagscope/internal/config"
	"evalgo.org/tagscope/models"
)

func newLinter() *Linter {
	return New(config.DefaultAnalysisConfig().Naming)
}

func TestNameViolations(t *testing.T) {
	l := newLinter()

	tests := []struct {
		name string
		want []string
	}{
		{"ga4_event_purchase", nil},
		{"_private_tag", nil},
		{"ga4EventPurchase", nil},
		{"ab", []string{"length must be between 3 and 50 characters"}},
		{"1st_tag", []string{RuleLeadingChar, RuleCase}},
		{"GA4 Config", []string{RuleNoWhitespace, RuleCase}},
		{"ga4-config", []string{RuleCase, RuleAllowedChars}},
		{"Ga4Config", []string{RuleCase}},
		{"", []string{RuleLeadingChar, "length must be between 3 and 50 characters", RuleCase}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, l.NameViolations(tt.name))
		})
	}
}

func TestNew_FallsBackOnBadPattern(t *testing.T) {
	l := New(config.NamingConfig{SnakePattern: "([", CamelPattern: ""})
	assert.Nil(t, l.NameViolations("snake_case"))
	assert.Equal(t, 3, l.minLen)
	assert.Equal(t, 50, l.maxLen)
}

func TestAnalyze(t *testing.T) {
	c := &models.Container{
		Tags: []models.Tag{
			{TagID: "1", Name: "ga4_config", Type: "googtag", FiringTriggerIDs: []string{"2147479553"}},
			{TagID: "2", Name: "old ua", Type: "ua", Paused: true},
			{TagID: "3", Name: "meta_pixel", Type: "html", FiringTriggerIDs: []string{"5"}, HTML: "<script>fbq('init')</script>"},
		},
	}

	res := newLinter().Analyze(c)

	assert.Equal(t, Summary{
		Total:      3,
		Paused:     1,
		UAObsolete: 1,
		Naming:     1,
		NoTrigger:  1,
		Marketing:  1,
		Analytics:  2,
		CustomHTML: 1,
	}, res.Summary)

	require.Len(t, res.Issues, 4)
	cats := make([]string, 0, len(res.Issues))
	for _, i := range res.Issues {
		assert.Equal(t, "tag:2", i.Key())
		cats = append(cats, i.Category())
	}
	assert.Equal(t, []string{
		models.CategoryPaused,
		models.CategoryUAObsolete,
		models.CategoryNaming,
		models.CategoryNoTrigger,
	}, cats)
}

func TestAnalyze_MonotonicInPausedTags(t *testing.T) {
	base := &models.Container{Tags: []models.Tag{
		{TagID: "1", Name: "clean_tag", Type: "html", FiringTriggerIDs: []string{"1"}},
	}}
	more := &models.Container{Tags: append(append([]models.Tag{}, base.Tags...),
		models.Tag{TagID: "2", Name: "paused_tag", Type: "html", Paused: true, FiringTriggerIDs: []string{"1"}})}

	l := newLinter()
	assert.Equal(t, 0, l.Analyze(base).Summary.Paused)
	assert.Equal(t, 1, l.Analyze(more).Summary.Paused)
}

func TestAnalyze_Empty(t *testing.T) {
	res := newLinter().Analyze(&models.Container{})
	assert.Empty(t, res.Issues)
	assert.NotNil(t, res.Issues)
	assert.Equal(t, 0, res.Summary.Total)
}
