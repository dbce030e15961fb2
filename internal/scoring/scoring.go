// Package scoring turns per-dimension issue counts into the weighted
// container quality score.
package scoring

import (
	"math"

	"evalgo.org/tagscope/internal/config"
	"evalgo.org/tagscope/models"
)

// Dimension labels.
const (
	LabelTags      = "tags"
	LabelTriggers  = "triggers"
	LabelVariables = "variables"
)

// Dimension is one scored entity kind.
type Dimension struct {
	Label string
	Kind  models.EntityKind

	// Total is the number of entities of this kind
	Total int

	// Available is false when the analyzers feeding this dimension failed
	Available bool
}

// Breakdown is the displayed contribution of one dimension.
type Breakdown struct {
	Label string `json:"label"`

	// Value is the cleanliness percentage, 0 to 100
	Value float64 `json:"value"`

	// Weight is the effective weight after renormalization, 0 to 1
	Weight float64 `json:"weight"`

	Available bool `json:"available"`
}

// QualityScore is the weighted total and its breakdown.
type QualityScore struct {
	Total     float64       `json:"total"`
	Breakdown []Breakdown   `json:"breakdown"`
	Status    models.Status `json:"status"`
}

// Cleanliness is 100 × (1 − entities with issues / total) for one entity
// kind. An empty collection is fully clean.
func Cleanliness(kind models.EntityKind, total int, issues []models.Issue) float64 {
	if total <= 0 {
		return 100
	}
	affected := make(map[string]struct{})
	for _, i := range issues {
		if i.EntityKind == kind {
			affected[i.EntityID] = struct{}{}
		}
	}
	return clamp(100 * (1 - float64(len(affected))/float64(total)))
}

// Aggregate combines the dimensions with the configured weights. Weights of
// unavailable dimensions are dropped and the rest renormalized; when no
// dimension is available the total is 0 and the status unavailable.
func Aggregate(w config.WeightsConfig, dims []Dimension, issues []models.Issue) QualityScore {
	weightOf := map[string]float64{
		LabelTags:      w.Tags,
		LabelTriggers:  w.Triggers,
		LabelVariables: w.Variables,
	}

	sum := 0.0
	for _, d := range dims {
		if d.Available {
			sum += nonNegative(weightOf[d.Label])
		}
	}

	score := QualityScore{Breakdown: make([]Breakdown, 0, len(dims))}
	total := 0.0
	for _, d := range dims {
		b := Breakdown{Label: d.Label, Available: d.Available}
		if d.Available {
			b.Value = round2(Cleanliness(d.Kind, d.Total, issues))
			if sum > 0 {
				b.Weight = nonNegative(weightOf[d.Label]) / sum
			}
			total += b.Value * b.Weight
		}
		score.Breakdown = append(score.Breakdown, b)
	}

	if sum <= 0 {
		score.Status = models.StatusUnavailable
		return score
	}
	score.Total = round2(clamp(total))
	score.Status = models.StatusOf(issues)
	return score
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}

func nonNegative(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
