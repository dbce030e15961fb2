package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalgo.org/tagscope/internal/config"
	"evalgo.org/tagscope/models"
)

func dims(tags, triggers, variables int) []Dimension {
	return []Dimension{
		{Label: LabelTags, Kind: models.KindTag, Total: tags, Available: true},
		{Label: LabelTriggers, Kind: models.KindTrigger, Total: triggers, Available: true},
		{Label: LabelVariables, Kind: models.KindVariable, Total: variables, Available: true},
	}
}

func weights() config.WeightsConfig {
	return config.DefaultAnalysisConfig().Weights
}

func issue(kind models.EntityKind, id string) models.Issue {
	return models.Issue{EntityKind: kind, EntityID: id, Categories: []string{"x"}, Severity: models.SeverityMinor}
}

func TestAggregate_Empty(t *testing.T) {
	s := Aggregate(weights(), dims(0, 0, 0), nil)
	assert.Equal(t, 100.0, s.Total)
	assert.Equal(t, models.StatusOK, s.Status)
	require.Len(t, s.Breakdown, 3)
	assert.InDelta(t, 0.4, s.Breakdown[0].Weight, 1e-9)
	assert.InDelta(t, 0.3, s.Breakdown[1].Weight, 1e-9)
}

func TestCleanliness_CountsEntitiesOnce(t *testing.T) {
	issues := []models.Issue{
		issue(models.KindTag, "1"),
		issue(models.KindTag, "1"),
		issue(models.KindTag, "2"),
		issue(models.KindTrigger, "1"),
	}
	assert.Equal(t, 50.0, Cleanliness(models.KindTag, 4, issues))
	assert.Equal(t, 100.0, Cleanliness(models.KindVariable, 0, issues))
	assert.Equal(t, 0.0, Cleanliness(models.KindTrigger, 1, issues))
}

func TestAggregate_Weighted(t *testing.T) {
	issues := []models.Issue{issue(models.KindTag, "1"), issue(models.KindVariable, "3")}
	s := Aggregate(weights(), dims(2, 4, 2), issues)

	// tags 50, triggers 100, variables 50
	assert.InDelta(t, 0.4*50+0.3*100+0.3*50, s.Total, 1e-9)
	assert.Equal(t, models.StatusMinor, s.Status)
}

func TestAggregate_Renormalizes(t *testing.T) {
	d := dims(2, 4, 2)
	d[2].Available = false
	issues := []models.Issue{issue(models.KindTag, "1")}

	s := Aggregate(weights(), d, issues)
	assert.InDelta(t, (40*50.0+30*100.0)/70, s.Total, 0.01)
	assert.Equal(t, 0.0, s.Breakdown[2].Weight)
	assert.False(t, s.Breakdown[2].Available)
	assert.InDelta(t, 40.0/70, s.Breakdown[0].Weight, 1e-9)
}

func TestAggregate_AllUnavailable(t *testing.T) {
	d := dims(1, 1, 1)
	for i := range d {
		d[i].Available = false
	}
	s := Aggregate(weights(), d, nil)
	assert.Equal(t, 0.0, s.Total)
	assert.Equal(t, models.StatusUnavailable, s.Status)
}

func TestAggregate_ZeroWeightDimension(t *testing.T) {
	w := config.WeightsConfig{Tags: 1}
	s := Aggregate(w, dims(1, 1, 1), []models.Issue{issue(models.KindTrigger, "1")})
	assert.Equal(t, 100.0, s.Total)
}

// Adding a flagged entity never raises the cleanliness of its dimension.
func TestCleanliness_Monotonic(t *testing.T) {
	var issues []models.Issue
	prev := Cleanliness(models.KindTag, 0, issues)
	for n := 1; n <= 20; n++ {
		issues = append(issues, issue(models.KindTag, string(rune('a'+n))))
		cur := Cleanliness(models.KindTag, n+3, issues)
		assert.LessOrEqual(t, cur, prev)
		prev = cur
	}
}
